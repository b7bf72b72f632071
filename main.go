package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	dbPath        string
	portApp       string
	attachmentDir string
	strictRefs    bool
	logger        *zap.Logger
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using defaults")
	}

	dbPath = os.Getenv("dbPath")
	if dbPath == "" {
		dbPath = "opex.db"
	}

	portApp = os.Getenv("portApp")
	if portApp == "" {
		portApp = "9000"
	}

	attachmentDir = os.Getenv("attachmentDir")
	if attachmentDir == "" {
		attachmentDir = "attachments"
	}

	strictRefs, _ = strconv.ParseBool(os.Getenv("importStrictRefs"))

	logger = newLogger(os.Getenv("mode"))

	initDb()
}

func newLogger(mode string) *zap.Logger {
	var config zap.Config
	if mode == "debug" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	l, err := config.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return l
}

func requestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		l.Info("HTTP request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Duration("cost", time.Since(start)),
		)
	}
}

func main() {
	if os.Getenv("mode") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
		AllowAllOrigins:  true,
	}))

	r.GET("/healthCheck", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "OK"})
	})

	r.GET("/contracts", getContracts)
	r.POST("/contracts", createContract)
	r.GET("/contracts/:id", getContractDetail)
	r.PUT("/contracts/:id", updateContract)
	r.DELETE("/contracts/:id", deleteContract)

	r.GET("/contracts/:id/attachment", getAttachments)
	r.POST("/contracts/:id/attachment", createAttachment)
	r.GET("/contracts/:id/attachment/:attId", downloadAttachment)
	r.DELETE("/contracts/:id/attachment/:attId", deleteAttachment)

	r.GET("/departments", getDepartments)
	r.POST("/departments", createDepartment)
	r.GET("/accounts", getAccounts)
	r.POST("/accounts", createAccount)
	r.GET("/statuses", getStatuses)

	r.GET("/yearlyBudget", getYearlyBudgets)
	r.POST("/yearlyBudget", createYearlyBudget)

	r.POST("/import", importContracts)
	r.GET("/export/contracts", exportContracts)

	r.GET("/report/kpi", getKPIReport)
	r.GET("/report/expiring", getExpiringContracts)
	r.GET("/report/spending", getSpendingReport)
	r.GET("/report/consumption", getConsumptionReport)

	if err := r.Run(":" + portApp); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
