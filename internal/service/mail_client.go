package service

import (
	"fmt"
	"time"

	"smartfarm-backend/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MailSender 邮件发送抽象（notification/application/task 等服务共用）
// 所有发送都是尽力而为：失败只记日志，不影响主流程
type MailSender interface {
	Send(to, subject, htmlBody string)
}

// mailRequest 邮件网关 API 请求体
type mailRequest struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
}

// mailResponse 邮件网关 API 响应
type mailResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// MailClient 邮件网关 HTTP 客户端
type MailClient struct {
	httpClient *resty.Client
	cfg        config.MailConfig
	logger     *zap.Logger
}

// NewMailClient 创建邮件客户端
func NewMailClient(cfg config.MailConfig, logger *zap.Logger) *MailClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &MailClient{
		httpClient: client,
		cfg:        cfg,
		logger:     logger,
	}
}

var _ MailSender = (*MailClient)(nil)

// Send 异步投递一封邮件，失败只记日志
func (c *MailClient) Send(to, subject, htmlBody string) {
	if !c.cfg.Enabled {
		c.logger.Debug("Mail gateway disabled, skipping email",
			zap.String("to", to),
			zap.String("subject", subject),
		)
		return
	}
	go func() {
		request := mailRequest{
			From:     c.cfg.FromAddress,
			FromName: c.cfg.FromName,
			To:       to,
			Subject:  subject,
			HTML:     htmlBody,
		}

		var response mailResponse
		resp, err := c.httpClient.R().
			SetBody(request).
			SetResult(&response).
			Post("/v1/mail/send")
		if err != nil {
			c.logger.Error("Mail API call failed",
				zap.Error(err),
				zap.String("to", to),
				zap.String("subject", subject),
			)
			return
		}
		if resp.StatusCode() >= 300 || response.Status != 0 {
			c.logger.Error("Mail API returned error",
				zap.Int("http_status", resp.StatusCode()),
				zap.Int("status", response.Status),
				zap.String("msg", response.Msg),
				zap.String("to", to),
			)
			return
		}
		c.logger.Info("Email sent",
			zap.String("to", to),
			zap.String("subject", subject),
		)
	}()
}

// ============================================
// 邮件模板
// ============================================

const mailLayout = `<html><body style="font-family:Arial,sans-serif;color:#333">
<div style="max-width:600px;margin:0 auto;padding:16px">
<h2 style="color:#2e7d32">SmartFarm360</h2>
%s
<p style="color:#888;font-size:12px">This is an automated message, please do not reply.</p>
</div></body></html>`

// SendCredentials 新账号开通（含初始密码，首次登录强制改密）
func (c *MailClient) SendCredentials(to, fullName, username, password string) {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your SmartFarm360 account has been created.</p>
<p><b>Username:</b> %s<br><b>Temporary password:</b> %s</p>
<p>You will be asked to change your password on first login.</p>`,
		fullName, username, password)
	c.Send(to, "Your SmartFarm360 account", fmt.Sprintf(mailLayout, body))
}

// SendTaskAssignment 新任务派发通知
func (c *MailClient) SendTaskAssignment(to, workerName, taskTitle, farmName, dueDate string) {
	due := ""
	if dueDate != "" {
		due = fmt.Sprintf("<p><b>Due:</b> %s</p>", dueDate)
	}
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>A new task has been assigned to you on <b>%s</b>:</p>
<p style="font-size:16px"><b>%s</b></p>%s`,
		workerName, farmName, taskTitle, due)
	c.Send(to, "New task assigned: "+taskTitle, fmt.Sprintf(mailLayout, body))
}

// SendTaskCompletion 任务完成回执（发给创建主管）
func (c *MailClient) SendTaskCompletion(to, supervisorName, workerName, taskTitle string) {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p><b>%s</b> has marked the task <b>%s</b> as completed.</p>`,
		supervisorName, workerName, taskTitle)
	c.Send(to, "Task completed: "+taskTitle, fmt.Sprintf(mailLayout, body))
}

// SendApplicationConfirmation 申请受理回执
func (c *MailClient) SendApplicationConfirmation(to, applicantName, farmName string) {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>We have received your application to register <b>%s</b> on SmartFarm360.</p>
<p>Our team will review it and get back to you by email.</p>`,
		applicantName, farmName)
	c.Send(to, "Application received", fmt.Sprintf(mailLayout, body))
}

// SendApplicationApproval 申请通过（含生成的登录凭据）
func (c *MailClient) SendApplicationApproval(to, applicantName, username, password string) {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your farm owner application has been <b>approved</b>.</p>
<p><b>Username:</b> %s<br><b>Temporary password:</b> %s</p>
<p>You will be asked to change your password on first login.</p>`,
		applicantName, username, password)
	c.Send(to, "Application approved - welcome to SmartFarm360", fmt.Sprintf(mailLayout, body))
}

// SendApplicationRejection 申请驳回（含原因）
func (c *MailClient) SendApplicationRejection(to, applicantName, reason string) {
	why := ""
	if reason != "" {
		why = fmt.Sprintf("<p><b>Reason:</b> %s</p>", reason)
	}
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>We are sorry to inform you that your farm owner application was not approved.</p>%s`,
		applicantName, why)
	c.Send(to, "Application update", fmt.Sprintf(mailLayout, body))
}

// SendNewApplicationNotice 新申请到达（发给管理员）
func (c *MailClient) SendNewApplicationNotice(to, applicantName, farmName string) {
	body := fmt.Sprintf(`<p>A new farm owner application is waiting for review:</p>
<p><b>Applicant:</b> %s<br><b>Farm:</b> %s</p>`, applicantName, farmName)
	c.Send(to, "New farm owner application", fmt.Sprintf(mailLayout, body))
}

// SendPlainNotice 人工通知（主题和正文由发送方给定）
func (c *MailClient) SendPlainNotice(to, fullName, subject, message string) {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>%s</p>`, fullName, message)
	c.Send(to, subject, fmt.Sprintf(mailLayout, body))
}

// SendPasswordChangeNotice 密码变更安全提醒
func (c *MailClient) SendPasswordChangeNotice(to, fullName string) {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your SmartFarm360 password was changed. If this was not you, contact your administrator immediately.</p>`,
		fullName)
	c.Send(to, "Your password was changed", fmt.Sprintf(mailLayout, body))
}
