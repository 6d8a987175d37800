package memory

import "github.com/Nzyazin/miniauthorizer/internal/core/repository"

// LockEntries reports how many card numbers currently have a lock entry.
func LockEntries(repo repository.CardRepository) int {
	r := repo.(*memoryCardRepo)
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	return len(r.locks)
}
