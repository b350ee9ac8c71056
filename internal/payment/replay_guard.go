package payment

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ReplayGuard помнит недавно принятые события вебхуков и отсекает горячие повторы
// до обращения к базе. Окончательная дедупликация выполняется в БД.
type ReplayGuard struct {
	seen *cache.Cache
}

func NewReplayGuard(ttl, cleanupInterval time.Duration) *ReplayGuard {
	return &ReplayGuard{seen: cache.New(ttl, cleanupInterval)}
}

// MarkSeen регистрирует событие. Возвращает false, если оно уже встречалось.
func (g *ReplayGuard) MarkSeen(provider, eventID string) bool {
	return g.seen.Add(replayKey(provider, eventID), struct{}{}, cache.DefaultExpiration) == nil
}

// Forget снимает отметку, чтобы провайдер мог повторить событие после сбоя обработки.
func (g *ReplayGuard) Forget(provider, eventID string) {
	g.seen.Delete(replayKey(provider, eventID))
}

func replayKey(provider, eventID string) string {
	return provider + ":" + eventID
}
