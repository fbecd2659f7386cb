package ledger

// SeedBalance is a test helper that sets a wallet balance directly when using
// the in-memory store.
func SeedBalance(s Store, walletID string, balance int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if wallet, exists := mem.wallets[walletID]; exists {
			wallet.Balance = balance
			mem.wallets[walletID] = wallet
		}
	}
}
