package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/postways-next/internal/config"
)

// EmailService 邮件发送服务
type EmailService struct {
	cfg  *config.EmailConfig
	site *config.SiteConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig, site *config.SiteConfig) *EmailService {
	return &EmailService{cfg: cfg, site: site}
}

func (s *EmailService) siteName() string {
	if s.site != nil && strings.TrimSpace(s.site.Name) != "" {
		return strings.TrimSpace(s.site.Name)
	}
	return "Postways"
}

func (s *EmailService) buildLink(path, token string) string {
	base := ""
	if s.site != nil {
		base = strings.TrimRight(strings.TrimSpace(s.site.BaseURL), "/")
	}
	return fmt.Sprintf("%s%s?token=%s", base, path, url.QueryEscape(token))
}

// SendRecoveryEmail 发送找回密码邮件
func (s *EmailService) SendRecoveryEmail(toEmail, token string) error {
	link := s.buildLink("/reset-password", token)
	subject := fmt.Sprintf("%s 密码重置", s.siteName())
	body := fmt.Sprintf("您申请了重置密码，请在 1 小时内打开以下链接完成操作：\n\n%s\n\n如果这不是您本人的操作，请忽略本邮件。", link)
	return s.sendTextEmail(toEmail, subject, body)
}

// SendChangeVerifyEmail 发送换绑邮箱验证邮件
func (s *EmailService) SendChangeVerifyEmail(toEmail, token string) error {
	link := s.buildLink("/verify-email", token)
	subject := fmt.Sprintf("%s 邮箱换绑验证", s.siteName())
	body := fmt.Sprintf("您正在将账号邮箱换绑到当前地址，请在 24 小时内打开以下链接完成验证：\n\n%s\n\n如果这不是您本人的操作，请忽略本邮件。", link)
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceDisabled
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrEmailInvalid
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg := buildEmailMessage(from, toEmail, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.UseSSL {
		return sendMailWithSSL(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
	}
	if s.cfg.UseTLS {
		return sendMailWithStartTLS(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
	}
	return sendMailPlain(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
