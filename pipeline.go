package settings

import "context"

// Normalizer is implemented by settings types that adjust their own values
// after binding and before constraint validation.
type Normalizer interface {
	Normalize(ctx context.Context) error
}

// Refiner is implemented by settings types with rules spanning several
// fields. It runs last, on a value that passed validation.
type Refiner interface {
	Refine(ctx context.Context) error
}

// applyNormalize calls Normalizer if *v implements it.
func applyNormalize(ctx context.Context, v any) Issues {
	if n, ok := v.(Normalizer); ok {
		return hookIssues(n.Normalize(ctx))
	}
	return nil
}

// applyRefine calls Refiner if *v implements it.
func applyRefine(ctx context.Context, v any) Issues {
	if r, ok := v.(Refiner); ok {
		return hookIssues(r.Refine(ctx))
	}
	return nil
}

// hookIssues keeps Issues returned by hooks as they are and wraps any other
// error as a business rule failure at the root.
func hookIssues(err error) Issues {
	if err == nil {
		return nil
	}
	if iss, ok := AsIssues(err); ok {
		return iss
	}
	return Issues{{Code: CodeBusinessRule, Message: err.Error(), Cause: err}}
}
