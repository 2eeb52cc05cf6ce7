package service

import "sync"

// lockStripes — число полос блокировок. Степень двойки.
const lockStripes = 64

// idLocks — полосатые RW-блокировки по ID файла.
// Скачивание берёт RLock на время поиска записи и открытия blob,
// удаление — Lock на поиск, удаление blob и удаление записи.
// Разные ID могут попасть в одну полосу: это лишь снижает параллелизм.
type idLocks struct {
	stripes [lockStripes]sync.RWMutex
}

func (l *idLocks) forID(id int64) *sync.RWMutex {
	return &l.stripes[uint64(id)&(lockStripes-1)]
}
