package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/provider"
	"github.com/postways-next/internal/queue"
	"github.com/postways-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskEmailRecovery, c.handleRecoveryEmail)
	mux.HandleFunc(queue.TaskEmailChangeVerify, c.handleChangeVerifyEmail)
	mux.HandleFunc(queue.TaskPostImageProcess, c.handlePostImageProcess)
}

func (c *Consumer) handleRecoveryEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.RecoveryEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_recovery_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.Email == "" || payload.Token == "" {
		logger.Debugw("worker_recovery_email_skip_invalid_payload", "user_id", payload.UserID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_recovery_email_skip_email_service_nil", "user_id", payload.UserID)
		return nil
	}
	if err := c.EmailService.SendRecoveryEmail(payload.Email, payload.Token); err != nil {
		if errors.Is(err, service.ErrEmailServiceDisabled) {
			logger.Debugw("worker_recovery_email_skip_disabled", "user_id", payload.UserID)
			return nil
		}
		logger.Warnw("worker_recovery_email_send_failed", "user_id", payload.UserID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleChangeVerifyEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.ChangeVerifyEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_change_verify_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.NewEmail == "" || payload.Token == "" {
		logger.Debugw("worker_change_verify_email_skip_invalid_payload", "user_id", payload.UserID)
		return nil
	}
	// 发送前确认换绑仍在进行中，用户可能已取消或超时
	user, err := c.UserRepo.GetByID(payload.UserID)
	if err != nil {
		logger.Warnw("worker_change_verify_email_fetch_user_failed", "user_id", payload.UserID, "error", err)
		return err
	}
	if user == nil || !user.PendingEmailInFlight() || user.EmailVerificationToken != payload.Token {
		logger.Debugw("worker_change_verify_email_skip_stale", "user_id", payload.UserID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_change_verify_email_skip_email_service_nil", "user_id", payload.UserID)
		return nil
	}
	if err := c.EmailService.SendChangeVerifyEmail(payload.NewEmail, payload.Token); err != nil {
		if errors.Is(err, service.ErrEmailServiceDisabled) {
			logger.Debugw("worker_change_verify_email_skip_disabled", "user_id", payload.UserID)
			return nil
		}
		logger.Warnw("worker_change_verify_email_send_failed", "user_id", payload.UserID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handlePostImageProcess(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.PostImageProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_post_image_unmarshal_failed", "error", err)
		return err
	}
	if payload.PostID == 0 || payload.ImagePath == "" {
		logger.Debugw("worker_post_image_skip_invalid_payload", "post_id", payload.PostID)
		return nil
	}
	if c.ImageService == nil {
		logger.Warnw("worker_post_image_skip_image_service_nil", "post_id", payload.PostID)
		return nil
	}
	if err := c.ImageService.Process(payload.PostID, payload.ImagePath); err != nil {
		logger.Warnw("worker_post_image_process_failed", "post_id", payload.PostID, "error", err)
		return err
	}
	return nil
}
