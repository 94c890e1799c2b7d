package repository

import "context"

// Repos agrupa los repositorios atados a un mismo ejecutor (pool o transacción).
type Repos struct {
	Customers     CustomerRepository
	Contributions ContributionRepository
	Orders        OrderRepository
	Inquiries     InquiryRepository
	Notes         NoteRepository
	SyncRuns      SyncRunRepository
}

// Tx transacción en curso.
type Tx interface {
	Repos() Repos
	// Savepoint ejecuta fn en un punto de guardado: si fn falla se deshacen sólo sus cambios
	// y la transacción sigue utilizable.
	Savepoint(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// TxRunner abre una transacción, ejecuta fn y hace Commit, o Rollback si fn falla.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store almacén transaccional con acceso directo para lecturas.
type Store interface {
	TxRunner
	Repos() Repos
}
