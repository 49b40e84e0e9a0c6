package resend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	resend "github.com/resend/resend-go/v2"
)

var ErrMissingRecipient = errors.New("missing recipient")

// Service relays authorization keys by e-mail.
type Service struct {
	client  *resend.Client
	from    string
	hostURL string
	log     *slog.Logger
}

// NewService creates a relay that sends from the given address and links to hostURL.
func NewService(client *resend.Client, from, hostURL string, log *slog.Logger) *Service {
	return &Service{
		client:  client,
		from:    from,
		hostURL: strings.TrimSuffix(hostURL, "/"),
		log:     log,
	}
}

func (s *Service) SendKey(ctx context.Context, mail KeyMail) error {
	if strings.TrimSpace(mail.To) == "" {
		return ErrMissingRecipient
	}
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{mail.To},
		Subject: fmt.Sprintf("Access key for %s", mail.TournamentID),
		Html:    getEmailTemplate(mail.Key, fmt.Sprintf("%s/access/%s", s.hostURL, mail.Key), string(mail.Scope)),
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to send key mail",
			slog.String("tournament_id", mail.TournamentID),
			slog.Any("error", err),
		)
		return fmt.Errorf("sending key mail: %w", err)
	}
	s.log.InfoContext(ctx, "Key mail sent",
		slog.String("tournament_id", mail.TournamentID),
		slog.String("mail_id", sent.Id),
	)
	return nil
}

func getEmailTemplate(key, url, scope string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <style>
        body {
            font-family: Arial, sans-serif;
            background-color: #f4f4f4;
            margin: 0;
            padding: 20px;
        }
        .container {
            background-color: #ffffff;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
        .key {
            font-family: monospace;
            font-size: 32px;
            letter-spacing: 6px;
            text-align: center;
        }
        .button {
            display: block;
            width: 200px;
            height: 50px;
            margin: 20px auto;
            background-color: #007BFF;
            color: #ffffff;
            font-size: 16px;
            text-align: center;
            line-height: 50px;
            text-decoration: none;
            border-radius: 5px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h2>Hello,</h2>
        <p>You have been given %s access. Enter this key on your device:</p>
        <p class="key">%s</p>
        <a href="%s" class="button">Use key</a>
    </div>
</body>
</html>`, scope, key, url)
}
