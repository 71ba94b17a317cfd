package iocli

//go:generate moq -out io_mock.go . IO

// IO ввод и вывод команд CLI
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	Write(p []byte) (n int, err error)
	// ReadAll читает весь стандартный ввод (payload из pipe)
	ReadAll() ([]byte, error)
	// IsTerminal сообщает, подключен ли вывод к терминалу
	IsTerminal() bool
}
