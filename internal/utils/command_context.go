package utils

import "context"

type invocationContextKey struct{}

// Invocation describes how the current command resolved its configuration.
type Invocation struct {
	ConfigurationFilePath string
	RepositoryPath        string
	Backend               string
}

// WithInvocation returns a child of parentContext carrying invocation.
func WithInvocation(parentContext context.Context, invocation Invocation) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, invocationContextKey{}, invocation)
}

// InvocationFrom returns the invocation stored by WithInvocation.
func InvocationFrom(executionContext context.Context) (Invocation, bool) {
	if executionContext == nil {
		return Invocation{}, false
	}
	invocation, found := executionContext.Value(invocationContextKey{}).(Invocation)
	return invocation, found
}
