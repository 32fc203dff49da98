// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edubridge/mastery-graph/internal/domain/realtime"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MASTERY CHANGED HANDLER
// Пересылает события реестра мастерства в канал доставки реального времени.
//
// Канал - best-effort: доставка получают только текущие подписчики, повторное
// проигрывание отсутствует. Ошибки доставки логируются и никогда не влияют
// на записанное состояние реестра - реестр уже является источником истины
// к моменту вызова обработчика.
// ═══════════════════════════════════════════════════════════════════════════

// OnMasteryChangedHandler пересылает события мастерства в realtime-канал.
type OnMasteryChangedHandler struct {
	channel realtime.Channel
	logger  *slog.Logger
	config  MasteryChangedConfig
}

// MasteryChangedConfig содержит конфигурацию обработчика.
type MasteryChangedConfig struct {
	// PushTimeout ограничивает время одной доставки. Медленный канал
	// не должен тормозить конвейер оценивания.
	PushTimeout time.Duration
}

// DefaultMasteryChangedConfig возвращает конфигурацию по умолчанию.
func DefaultMasteryChangedConfig() MasteryChangedConfig {
	return MasteryChangedConfig{
		PushTimeout: 2 * time.Second,
	}
}

// NewOnMasteryChangedHandler создаёт новый обработчик.
func NewOnMasteryChangedHandler(channel realtime.Channel, logger *slog.Logger, config MasteryChangedConfig) *OnMasteryChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PushTimeout == 0 {
		config = DefaultMasteryChangedConfig()
	}

	return &OnMasteryChangedHandler{
		channel: channel,
		logger:  logger.With("handler", "on_mastery_changed"),
		config:  config,
	}
}

// Subscribe регистрирует обработчик на типы событий мастерства.
func (h *OnMasteryChangedHandler) Subscribe(bus shared.EventSubscriber) error {
	for _, eventType := range []shared.EventType{
		shared.EventMasteryUpdated,
		shared.EventConceptDiscovered,
		shared.EventMilestoneAchieved,
	} {
		if err := bus.Subscribe(eventType, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}
	return nil
}

// Handle пересылает одно событие. Реализует shared.EventHandler.
func (h *OnMasteryChangedHandler) Handle(event shared.Event) error {
	kind, ok := messageKind(event.EventType())
	if !ok {
		// Незнакомый тип - не ошибка, просто не пересылаем.
		return nil
	}

	msg := realtime.Message{
		Kind:      kind,
		StudentID: event.AggregateID(),
		Payload:   event.Payload(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.PushTimeout)
	defer cancel()

	if err := h.channel.Push(ctx, msg); err != nil {
		// Лог, не ошибка наверх: доставка best-effort.
		h.logger.Warn("realtime push failed",
			"event_kind", kind.String(),
			"student_id", msg.StudentID,
			"error", err)
	}
	return nil
}

// messageKind сопоставляет тип доменного события типу сообщения канала.
func messageKind(eventType shared.EventType) (realtime.EventKind, bool) {
	switch eventType {
	case shared.EventMasteryUpdated:
		return realtime.KindMasteryUpdated, true
	case shared.EventConceptDiscovered:
		return realtime.KindConceptDiscovered, true
	case shared.EventMilestoneAchieved:
		return realtime.KindMilestoneAchieved, true
	default:
		return "", false
	}
}
