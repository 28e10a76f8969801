package llm

import "context"

// Completer is the language-model collaborator: prompt in, free-form text out.
// No schema is enforced on the model side; callers recover JSON locally.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
