package attach

import "context"

// AutoConfirm answers every confirmation prompt the same way. The CLI uses
// it for -y runs; tests use it to script both answers.
type AutoConfirm bool

func (a AutoConfirm) Confirm(ctx context.Context, prompt string) bool {
	return bool(a)
}
