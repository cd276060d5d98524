package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Cabralneto/site-tracker-pro/internal/config"
	"github.com/Cabralneto/site-tracker-pro/internal/reports"
)

// SummaryWorker emails the previous day's permit numbers, with the full
// spreadsheet attached, to the configured recipients.
type SummaryWorker struct {
	reports    *reports.Service
	ses        *sesv2.Client
	sender     string
	recipients []string
	logger     *zap.Logger
}

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	if len(cfg.Email.SummaryRecipients) == 0 {
		logger.Fatal("SUMMARY_RECIPIENTS must be set")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Email.Region))
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}

	worker := &SummaryWorker{
		reports:    reports.NewService(reports.NewPostgresRepository(db), logger),
		ses:        sesv2.NewFromConfig(awsCfg),
		sender:     cfg.Email.Sender,
		recipients: cfg.Email.SummaryRecipients,
		logger:     logger,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Worker.SummarySchedule, worker.Run); err != nil {
		logger.Fatal("Invalid summary schedule", zap.String("schedule", cfg.Worker.SummarySchedule), zap.Error(err))
	}
	scheduler.Start()

	logger.Info("Summary worker started",
		zap.String("schedule", cfg.Worker.SummarySchedule),
		zap.Strings("recipients", cfg.Email.SummaryRecipients))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down summary worker...")
	ctx := scheduler.Stop()
	<-ctx.Done()
	logger.Info("Summary worker exiting")
}

// Run builds and sends one daily summary. Invoked by the cron scheduler.
func (w *SummaryWorker) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	day := time.Now().AddDate(0, 0, -1)

	stats, err := w.reports.DailySummary(ctx, day)
	if err != nil {
		w.logger.Error("Failed to build daily stats", zap.Error(err))
		return
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	export, err := w.reports.ExportExcel(ctx, reports.Filters{DataInicio: &start, DataFim: &start})
	if err != nil {
		w.logger.Error("Failed to build daily spreadsheet", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("Resumo diário de PTs - %s", day.Format("02/01/2006"))
	raw, err := buildRawEmail(w.sender, w.recipients, subject, summaryBody(day, stats), export)
	if err != nil {
		w.logger.Error("Failed to build summary email", zap.Error(err))
		return
	}

	_, err = w.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &w.sender,
		Destination:      &types.Destination{ToAddresses: w.recipients},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		w.logger.Error("Failed to send summary email", zap.Error(err))
		return
	}

	w.logger.Info("Daily summary sent",
		zap.String("day", day.Format("2006-01-02")),
		zap.Int64("total", stats.Total),
		zap.Int("rows", export.RowCount))
}

func summaryBody(day time.Time, stats *reports.Stats) string {
	return fmt.Sprintf(`<html><body>
<h2>Resumo diário de Permissões de Trabalho</h2>
<p>Data do serviço: <strong>%s</strong></p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><td>Total de PTs</td><td>%d</td></tr>
<tr><td>Liberadas</td><td>%d</td></tr>
<tr><td>Impedidas</td><td>%d</td></tr>
<tr><td>Atrasos ETM</td><td>%d (%d min)</td></tr>
<tr><td>Atrasos Petrobras</td><td>%d (%d min)</td></tr>
<tr><td>HH improdutivo total</td><td>%d</td></tr>
</table>
<p>A planilha completa do dia segue em anexo.</p>
</body></html>`,
		day.Format("02/01/2006"),
		stats.Total, stats.Liberadas, stats.Impedidas,
		stats.AtrasosETM, stats.MinutosETM,
		stats.AtrasosPetrobras, stats.MinutosPetrobras,
		stats.TotalHHImprodutivo)
}

// buildRawEmail assembles a multipart/mixed MIME message with an HTML body
// and the xlsx attachment, as SES raw content.
func buildRawEmail(from string, to []string, subject, htmlBody string, attachment *reports.ExportResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/html; charset=UTF-8")
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	if _, err := bodyPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	attachmentHeader := textproto.MIMEHeader{}
	attachmentHeader.Set("Content-Type", attachment.ContentType)
	attachmentHeader.Set("Content-Transfer-Encoding", "base64")
	attachmentHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	attachmentPart, err := writer.CreatePart(attachmentHeader)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(attachment.Content)
	// RFC 2045 line length limit
	for len(encoded) > 76 {
		if _, err := attachmentPart.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return nil, err
		}
		encoded = encoded[76:]
	}
	if _, err := attachmentPart.Write([]byte(encoded + "\r\n")); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
