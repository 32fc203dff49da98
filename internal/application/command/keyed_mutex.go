package command

import (
	"sync"
)

// keyedMutex сериализует писателей по строковому ключу.
//
// Используется путём записи реестра для пары (студент, концепт): обновления
// одного ключа применяются строго последовательно, разные ключи идут
// параллельно. Это внутрипроцессная половина гарантии сериализации;
// межпроцессную половину даёт оптимистическая проверка версии в хранилище
// (см. mastery.Repository.SaveAttempt).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
// Записи о ключах без ожидающих писателей удаляются, чтобы карта
// не росла неограниченно.
func (m *keyedMutex) Lock(key string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
