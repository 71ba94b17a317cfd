package clock

import (
	"sync"
	"time"
)

// Clock выдаёт отметки времени в миллисекундах, строго растущие
// в пределах процесса. Это гибрид часов Лампорта и настенных часов:
// отметка не меньше текущего времени и всегда больше предыдущей.
type Clock struct {
	now  func() time.Time // источник настенного времени
	last int64            // последняя выданная отметка
	mu   sync.Mutex
}

// New создает часы на основе time.Now
func New() *Clock {
	return &Clock{now: time.Now}
}

// NewWithSource создает часы с заданным источником времени.
// Используется в тестах.
func NewWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Now возвращает следующую отметку: max(wall, last+1)
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.now().UnixMilli()
	if wall <= c.last {
		wall = c.last + 1
	}
	c.last = wall
	return wall
}

// Observe учитывает удалённую отметку, чтобы следующие локальные
// операции не оказались раньше уже увиденных.
// Согласно алгоритму Лампорта: last = max(last, remote)
func (c *Clock) Observe(remote int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote > c.last {
		c.last = remote
	}
}

// Last возвращает последнюю выданную отметку без её изменения
func (c *Clock) Last() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}
