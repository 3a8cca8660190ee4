package domain

import (
	"fmt"
	"time"
)

// Переходы жизненного цикла. Каждая функция проверяет исходное состояние и
// при несовпадении возвращает ErrStaleTransition, не меняя пост. Вызываться
// они должны только под блокировкой леджера, на свежепрочитанном посте.

func requireStatus(p *Post, want ...Status) error {
	for _, s := range want {
		if p.Status == s {
			return nil
		}
	}
	return fmt.Errorf("пост %s в статусе %q: %w", p.ID, p.Status, ErrStaleTransition)
}

// Approve переводит Pending → Approved.
func Approve(p *Post) error {
	if err := requireStatus(p, StatusPending); err != nil {
		return err
	}
	p.Status = StatusApproved
	return nil
}

// Reject переводит Pending → Rejected.
func Reject(p *Post) error {
	if err := requireStatus(p, StatusPending); err != nil {
		return err
	}
	p.Status = StatusRejected
	return nil
}

// MarkFavorite переводит Approved → Favorite.
func MarkFavorite(p *Post) error {
	if err := requireStatus(p, StatusApproved); err != nil {
		return err
	}
	p.Status = StatusFavorite
	return nil
}

// Schedule переводит Approved|Favorite → Scheduled. Время обязано быть
// строго в будущем относительно now, иначе ErrInvalidScheduleTime.
func Schedule(p *Post, at, now time.Time) error {
	if err := requireStatus(p, StatusApproved, StatusFavorite); err != nil {
		return err
	}
	if at.IsZero() || !at.After(now) {
		return ErrInvalidScheduleTime
	}
	p.Status = StatusScheduled
	t := at.UTC()
	p.ScheduledAt = &t
	return nil
}

// PublishOK переводит Scheduled → Published и фиксирует published_at.
func PublishOK(p *Post, now time.Time) error {
	if err := requireStatus(p, StatusScheduled); err != nil {
		return err
	}
	p.Status = StatusPublished
	p.ScheduledAt = nil
	t := now.UTC()
	p.PublishedAt = &t
	p.LastError = ""
	return nil
}

// PublishFail переводит Scheduled → Failed и увеличивает retry_count.
func PublishFail(p *Post, cause error) error {
	if err := requireStatus(p, StatusScheduled); err != nil {
		return err
	}
	p.Status = StatusFailed
	p.ScheduledAt = nil
	p.RetryCount++
	if cause != nil {
		p.LastError = cause.Error()
	}
	return nil
}

// RetrySchedule переводит Failed → Scheduled, если лимит попыток не
// исчерпан. Иначе возвращает ErrRetriesExhausted: вызывающий обязан GiveUp.
func RetrySchedule(p *Post, at, now time.Time, maxRetries int) error {
	if err := requireStatus(p, StatusFailed); err != nil {
		return err
	}
	if p.RetryCount >= maxRetries {
		return ErrRetriesExhausted
	}
	if at.IsZero() || !at.After(now) {
		return ErrInvalidScheduleTime
	}
	p.Status = StatusScheduled
	t := at.UTC()
	p.ScheduledAt = &t
	return nil
}

// GiveUp переводит Failed → Rejected после исчерпания попыток.
func GiveUp(p *Post) error {
	if err := requireStatus(p, StatusFailed); err != nil {
		return err
	}
	p.Status = StatusRejected
	p.ScheduledAt = nil
	return nil
}

// RejectPermanently переводит Scheduled → Rejected при необратимой ошибке
// публикации, минуя Failed.
func RejectPermanently(p *Post, cause error) error {
	if err := requireStatus(p, StatusScheduled); err != nil {
		return err
	}
	p.Status = StatusRejected
	p.ScheduledAt = nil
	if cause != nil {
		p.LastError = cause.Error()
	}
	return nil
}

// DedupBlocks сообщает, блокирует ли статус повторную подачу того же
// фингерпринта. Отклонённые и сбойные посты могут всплыть снова.
func DedupBlocks(s Status) bool {
	return s != StatusRejected && s != StatusFailed
}

// NextRetryDelay считает экспоненциальную задержку base*2^retryCount с
// ограничением сверху.
func NextRetryDelay(base, cap time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if cap > 0 && d >= cap {
			return cap
		}
	}
	if cap > 0 && d > cap {
		return cap
	}
	return d
}
