package repository

// scanner общий интерфейс для pgx.Row и pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}
