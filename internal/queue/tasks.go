package queue

import (
	"encoding/json"

	"github.com/postways-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskEmailRecovery 找回密码邮件任务
	TaskEmailRecovery = constants.TaskEmailRecovery
	// TaskEmailChangeVerify 换绑邮箱验证邮件任务
	TaskEmailChangeVerify = constants.TaskEmailChangeVerify
	// TaskPostImageProcess 文章图片处理任务
	TaskPostImageProcess = constants.TaskPostImageProcess
)

// RecoveryEmailPayload 找回密码邮件任务载荷
type RecoveryEmailPayload struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// ChangeVerifyEmailPayload 换绑邮箱验证邮件任务载荷
type ChangeVerifyEmailPayload struct {
	UserID   uint   `json:"user_id"`
	NewEmail string `json:"new_email"`
	Token    string `json:"token"`
}

// PostImageProcessPayload 文章图片处理任务载荷
type PostImageProcessPayload struct {
	PostID    uint   `json:"post_id"`
	ImagePath string `json:"image_path"`
}

// NewRecoveryEmailTask 创建找回密码邮件任务
func NewRecoveryEmailTask(payload RecoveryEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailRecovery, body), nil
}

// NewChangeVerifyEmailTask 创建换绑邮箱验证邮件任务
func NewChangeVerifyEmailTask(payload ChangeVerifyEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailChangeVerify, body), nil
}

// NewPostImageProcessTask 创建文章图片处理任务
func NewPostImageProcessTask(payload PostImageProcessPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPostImageProcess, body), nil
}
