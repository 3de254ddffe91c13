package cart

import "sync"

// ownerLocker сериализует мутации по ключу владельца. Каждому активному ключу
// соответствует refcounted-мьютекс; записи для простаивающих владельцев удаляются,
// чтобы карта не росла вместе с числом гостевых токенов.
type ownerLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocker() *ownerLocker {
	return &ownerLocker{entries: make(map[string]*lockEntry)}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
func (l *ownerLocker) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

// LockPair захватывает два ключа в порядке их лексикографического сравнения.
// Фиксированный глобальный порядок исключает deadlock между merge и любой
// операцией, которой понадобились бы оба ключа.
func (l *ownerLocker) LockPair(a, b string) func() {
	if a == b {
		return l.Lock(a)
	}
	if b < a {
		a, b = b, a
	}
	unlockA := l.Lock(a)
	unlockB := l.Lock(b)
	return func() {
		unlockB()
		unlockA()
	}
}
