package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/team-channel/internal/application"
	"github.com/example/team-channel/internal/logging"
)

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidMessageID = errors.New("無効なメッセージ ID です。")
	errMissingUserID    = errors.New("ユーザー ID を指定してください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   "指定されたリソースが見つかりません。",
		})
	case errors.Is(err, application.ErrAlreadyResolved):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_RESOLVED",
			Message:   "このリクエストはすでに処理されています。",
		})
	case errors.Is(err, application.ErrScheduleConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SCHEDULE_CONFLICT",
			Message:   "希望された時間帯は既存のスケジュールと重複しています。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: "VALIDATION_FAILED",
				Message:   "入力内容に誤りがあります。",
				Errors:    localizeValidationErrors(vErr),
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "content is required":
		return "メッセージ本文は必須です。"
	case "unknown message type":
		return "メッセージ種別が不正です。"
	case "response messages cannot be posted directly":
		return "承認・却下メッセージは直接投稿できません。"
	case "related schedule is required":
		return "対象のスケジュールを指定してください。"
	case "schedule does not exist":
		return "指定されたスケジュールは存在しません。"
	case "schedule belongs to another team":
		return "指定されたスケジュールはこのチームのものではありません。"
	case "requested start and end are required":
		return "希望する開始日時と終了日時は必須です。"
	case "requested start must be before requested end":
		return "終了日時は開始日時より後である必要があります。"
	case "team id is required":
		return "チーム ID は必須です。"
	case "target date is required":
		return "日付は必須です。"
	case "target date must be formatted YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "message is not a negotiation response":
		return "このメッセージは承認・却下メッセージではありません。"
	case "related records are missing":
		return "関連するレコードが見つかりません。"
	case "user id is required":
		return "ユーザー ID は必須です。"
	case "start and end are required":
		return "開始日時と終了日時は必須です。"
	case "start must be before end":
		return "終了日時は開始日時より後である必要があります。"
	default:
		if strings.HasPrefix(message, "content must be at most") {
			return "メッセージ本文は 500 文字以内で指定してください。"
		}
		if strings.HasPrefix(message, "content must be between") {
			return "メッセージ本文は 1 文字以上 500 文字以内で指定してください。"
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
