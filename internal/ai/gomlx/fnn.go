package gomlx

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	fnnLayer "github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// fnnScope is where the network variables live, in both the online and target contexts.
const fnnScope = "fnn"

// newContext creates a context initialized with hyperparameters set to their defaults: two hidden
// layers of 32 units with ReLU, trained with plain SGD.
func newContext() *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		optimizers.ParamOptimizer:    "sgd",
		optimizers.ParamLearningRate: 0.01,
		activations.ParamActivation:  "relu",
		layers.ParamDropoutRate:      0.0,
		regularizers.ParamL2:         0.0,

		// FNN network parameters:
		fnnLayer.ParamNumHiddenLayers: 2,
		fnnLayer.ParamNumHiddenNodes:  32,
		fnnLayer.ParamResidual:        false,
		fnnLayer.ParamNormalization:   "none",
	})
	return ctx.Checked(false)
}

// forwardGraph returns the Q-values for a batch of info states: shape [batchSize, numActions].
func forwardGraph(ctx *context.Context, infoStates *Node, numActions int) *Node {
	batchSize := infoStates.Shape().Dim(0)
	qValues := fnnLayer.New(ctx.In(fnnScope), infoStates, numActions).Done()
	qValues.AssertDims(batchSize, numActions)
	return qValues
}

// lossGraph is the mean squared error between the Q-values of the actions taken and the targets.
// actionsMask is the one-hot encoding of the actions taken, shape [batchSize, numActions].
func lossGraph(ctx *context.Context, infoStates, actionsMask, targets *Node, numActions int) *Node {
	qValues := forwardGraph(ctx, infoStates, numActions)
	predictions := ReduceSum(Mul(qValues, actionsMask), -1)
	loss := losses.MeanSquaredError([]*Node{targets}, []*Node{predictions})
	if !loss.IsScalar() {
		loss = ReduceAllMean(loss)
	}
	return loss
}

// createInfoStates packs the batch of info states into a tensor.
func createInfoStates(infoStates [][]float32, infoStateSize int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float32, len(infoStates), infoStateSize))
	tensors.MutableFlatData(t, func(flat []float32) {
		for ii, infoState := range infoStates {
			copy(flat[ii*infoStateSize:], infoState)
		}
	})
	return t
}

// createActionsMask one-hot encodes the actions taken.
func createActionsMask(actions []int, numActions int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float32, len(actions), numActions))
	tensors.MutableFlatData(t, func(flat []float32) {
		for ii, action := range actions {
			flat[ii*numActions+action] = 1
		}
	})
	return t
}

// createTargets packs the targets into a tensor.
func createTargets(targets []float32) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float32, len(targets)))
	tensors.MutableFlatData(t, func(flat []float32) {
		copy(flat, targets)
	})
	return t
}
