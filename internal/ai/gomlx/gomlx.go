// Package gomlx implements the Q-value network used by the DQN agent (see package dqn) with GoMLX.
//
// The online network is trained with one optimizer step per learning batch, while the target network
// lives in a separate context, and is only updated by copying the online weights (QNetwork.SyncTarget).
package gomlx

import (
	"sync"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/gomokuGo/internal/parameters"
	"github.com/pkg/errors"
)

var (
	// Backend is a singleton, the same for all networks.
	backend = sync.OnceValue(func() backends.Backend { return backends.New() })

	// muNewExec is used to synchronize the creation of executors and the variables initialization.
	muNewExec sync.Mutex
)

// extractParams and write them as context hyperparameters
func extractParams(modelName string, params parameters.Params, ctx *context.Context) error {
	var err error
	ctx.EnumerateParams(func(scope, key string, valueAny any) {
		if err != nil {
			// If error happened skip the rest.
			return
		}
		if scope != context.RootScope {
			return
		}
		switch defaultValue := valueAny.(type) {
		case string:
			value, _ := parameters.PopParamOr(params, key, defaultValue)
			ctx.SetParam(key, value)
		case int:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (int) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case float64:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float64) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case float32:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float32) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case bool:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (bool) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		default:
			err = errors.Errorf("model %s parameter %q is of unknown type %T", modelName, key, defaultValue)
		}
	})
	return err
}

// copyRootParams copies the root scope hyperparameters from one context to another.
func copyRootParams(from, to *context.Context) {
	from.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			to.SetParam(key, value)
		}
	})
}
