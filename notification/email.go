package notification

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SendImportSummary mails a short summary of an import run to the
// addresses configured via notifyTo. When the SMTP settings are not
// present in the environment the call is a no-op.
func SendImportSummary(logger *zap.Logger, upserted, posInserted int, approvedTotal float64, warnings, errors []string) {
	host := os.Getenv("smtpHost")
	to := os.Getenv("notifyTo")
	if host == "" || to == "" {
		return
	}

	port := 587
	if p, err := strconv.Atoi(os.Getenv("smtpPort")); err == nil {
		port = p
	}
	user := os.Getenv("smtpUser")
	password := os.Getenv("smtpPassword")

	body := fmt.Sprintf(
		"<p>Import finished.</p>"+
			"<ul>"+
			"<li>Contracts upserted: %s</li>"+
			"<li>POs inserted: %s</li>"+
			"<li>Approved total: OMR %s</li>"+
			"<li>Warnings: %d</li>"+
			"<li>Errors: %d</li>"+
			"</ul>",
		humanize.Comma(int64(upserted)),
		humanize.Comma(int64(posInserted)),
		humanize.CommafWithDigits(approvedTotal, 2),
		len(warnings),
		len(errors),
	)
	for _, w := range warnings {
		body += fmt.Sprintf("<p>%s</p>", w)
	}
	for _, e := range errors {
		body += fmt.Sprintf("<p>%s</p>", e)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", user)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Contract import summary")
	m.SetBody("text/html", body)

	d := gomail.NewDialer(host, port, user, password)
	if err := d.DialAndSend(m); err != nil {
		logger.Error("import summary email failed", zap.Error(err))
		return
	}
	logger.Info("import summary email sent", zap.String("to", to))
}
