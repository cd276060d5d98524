package users

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailSender delivers transactional mail. Implementations must be safe
// for concurrent use.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SESSender sends mail through AWS SES v2.
type SESSender struct {
	client *sesv2.Client
	sender string
}

// NewSESSender builds a sender using the default AWS credential chain.
func NewSESSender(ctx context.Context, region, sender string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(cfg), sender: sender}, nil
}

func (s *SESSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	charset := "UTF-8"
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &s.sender,
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject, Charset: &charset},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody, Charset: &charset},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	return nil
}

func inviteEmailBody(nome, inviteURL string) string {
	return fmt.Sprintf(`
		<h2>Bem-vindo ao Site Tracker</h2>
		<p>Olá %s,</p>
		<p>Você foi convidado para acessar o sistema de Permissões de Trabalho.</p>
		<p><a href="%s">Clique aqui para definir sua senha</a>. O convite expira em 7 dias.</p>
	`, nome, inviteURL)
}
