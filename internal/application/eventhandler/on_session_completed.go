// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
	"github.com/focusflow-app/focusflow-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SESSION COMPLETED HANDLER
// Обрабатывает завершение фокус-сессии и начисляет геймификацию.
//
// Ключевые функции:
// 1. Начисление XP — за чистое учебное время плюс бонусы за фокус и цель
// 2. Обновление серии — ежедневный streak учащегося
// 3. Публикация progress.xp_awarded и progress.streak_updated
//
// Отменённые сессии XP не приносят: слушаем только session.completed.
// ═══════════════════════════════════════════════════════════════════════════

// OnSessionCompletedHandler начисляет XP и обновляет streak по завершённой сессии.
type OnSessionCompletedHandler struct {
	learnerRepo progress.Repository
	publisher   shared.EventPublisher
	logger      *slog.Logger

	// handleTimeout ограничивает работу с хранилищем на одно событие.
	handleTimeout time.Duration
}

// NewOnSessionCompletedHandler создаёт обработчик.
func NewOnSessionCompletedHandler(learnerRepo progress.Repository, publisher shared.EventPublisher, logger *slog.Logger) *OnSessionCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnSessionCompletedHandler{
		learnerRepo:   learnerRepo,
		publisher:     publisher,
		logger:        logger,
		handleTimeout: 5 * time.Second,
	}
}

// Register подписывает обработчик на шину событий.
func (h *OnSessionCompletedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventSessionCompleted, h.Handle)
}

// Handle обрабатывает событие session.completed.
// Событие может прийти как типизированная структура (локальная шина)
// или как сырой payload (доставка через Redis с другого инстанса).
func (h *OnSessionCompletedHandler) Handle(event shared.Event) error {
	outcome, ownerID, sessionID, err := extractOutcome(event)
	if err != nil {
		return fmt.Errorf("on_session_completed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.handleTimeout)
	defer cancel()

	learner, err := h.learnerRepo.GetByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("on_session_completed: load learner %s: %w", ownerID, err)
	}

	award := learner.AwardSession(outcome)

	if err := h.learnerRepo.Update(ctx, learner); err != nil {
		return fmt.Errorf("on_session_completed: update learner %s: %w", ownerID, err)
	}

	h.logger.Info("session rewards applied",
		"owner_id", ownerID,
		"session_id", sessionID,
		"xp_awarded", int(award),
		"total_xp", int(learner.TotalXP),
		"streak", learner.CurrentStreak)

	if h.publisher != nil {
		h.publishProgress(ownerID, sessionID, int(award), learner)
	}
	return nil
}

// publishProgress публикует геймификационные события.
// Ошибки публикации не откатывают начисление: XP уже сохранён.
func (h *OnSessionCompletedHandler) publishProgress(ownerID, sessionID string, award int, learner *progress.Learner) {
	if award > 0 {
		ev := shared.NewXPAwardedEvent(ownerID, sessionID, award, int(learner.TotalXP))
		if err := h.publisher.Publish(ev); err != nil {
			h.logger.Warn("failed to publish xp_awarded", "owner_id", ownerID, "error", err)
		}
	}

	ev := shared.NewStreakUpdatedEvent(ownerID, learner.CurrentStreak, learner.BestStreak)
	if err := h.publisher.Publish(ev); err != nil {
		h.logger.Warn("failed to publish streak_updated", "owner_id", ownerID, "error", err)
	}
}

// extractOutcome достаёт результат сессии из события.
func extractOutcome(event shared.Event) (progress.SessionOutcome, string, string, error) {
	if typed, ok := event.(shared.SessionFinalizedEvent); ok {
		return progress.SessionOutcome{
			EffectiveStudySec: typed.EffectiveStudyTimeSec,
			FocusScore:        typed.FocusScore,
			CompletionPct:     typed.CompletionPct,
			FinishedAt:        typed.OccurredAt(),
		}, typed.OwnerID, typed.AggregateID(), nil
	}

	payload := event.Payload()
	ownerID, ok := payload["owner_id"].(string)
	if !ok || ownerID == "" {
		return progress.SessionOutcome{}, "", "", fmt.Errorf("event %s has no owner_id", event.EventType())
	}
	return progress.SessionOutcome{
		EffectiveStudySec: payloadInt(payload, "effective_study_time_sec"),
		FocusScore:        payloadInt(payload, "focus_score"),
		CompletionPct:     payloadFloat(payload, "completion_pct"),
		FinishedAt:        event.OccurredAt(),
	}, ownerID, event.AggregateID(), nil
}

// payloadInt читает числовое поле payload'а. JSON-десериализация даёт
// float64, локальная доставка может дать int.
func payloadInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func payloadFloat(payload map[string]interface{}, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
