package gomlx

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/gomokuGo/internal/ai/dqn"
	"github.com/janpfeifer/gomokuGo/internal/generics"
	"github.com/janpfeifer/gomokuGo/internal/parameters"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// QNetwork implements dqn.QNetwork with a feed-forward network (FNN).
type QNetwork struct {
	infoStateSize, numActions int

	// Online network context, trained and saved, and the target network context.
	ctx, targetCtx *context.Context

	// Executors.
	qValuesExec, targetQValuesExec, trainStepExec *context.Exec

	// checkpoint handler, if model is being saved/loaded to/from disk.
	checkpoint *checkpoints.Handler

	// optimizer used when training the model.
	optimizer optimizers.Interface

	// muLearning "write" for learning and syncing, and "read" for scoring.
	muLearning sync.RWMutex

	// muSave makes saving sequential.
	muSave sync.Mutex
}

var _ dqn.QNetwork = (*QNetwork)(nil)

// NewQNetwork creates the online and target networks.
//
// Parameters (all optional):
//
//   - model=<dir>: checkpoint directory. If it exists the model is loaded from it, and QNetwork.Save writes to it.
//     Use model=help to list the hyperparameters.
//   - keep=<n>: number of checkpoints to keep, default 10.
//   - hidden_layers=<n>, hidden_nodes=<n>: shortcuts for the FNN shape.
//   - Any of the hyperparameters of the context, e.g.: learning_rate=0.001,optimizer=adam.
//
// The parameters used are removed from params.
func NewQNetwork(infoStateSize, numActions int, params parameters.Params) (*QNetwork, error) {
	q := &QNetwork{
		infoStateSize: infoStateSize,
		numActions:    numActions,
		ctx:           newContext(),
		targetCtx:     newContext(),
	}

	modelPath, err := parameters.PopParamOr(params, "model", "")
	if err != nil {
		return nil, err
	}
	if slices.Index([]string{"help", "--help", "-help", "-h"}, modelPath) != -1 {
		q.writeHyperparametersHelp()
		return nil, errors.New("dqn model help requested")
	}
	keep, err := parameters.PopParamOr(params, "keep", 10)
	if err != nil {
		return nil, err
	}

	// Create checkpoint, and load it if it exists.
	if modelPath != "" {
		q.checkpoint, err = checkpoints.Build(q.ctx).Immediate().Keep(keep).Dir(modelPath).Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to build checkpoint for dqn model in %s", modelPath)
		}
	}

	// Shortcuts, and then overwrite hyperparameters from given params.
	for key, contextKey := range map[string]string{"hidden_layers": "fnn_num_hidden_layers", "hidden_nodes": "fnn_num_hidden_nodes"} {
		if value, found := params[key]; found {
			params[contextKey] = value
			delete(params, key)
		}
	}
	if err = extractParams("dqn", params, q.ctx); err != nil {
		return nil, err
	}
	copyRootParams(q.ctx, q.targetCtx)

	// Create the backend.
	_ = backend()
	q.optimizer = optimizers.FromContext(q.ctx)

	muNewExec.Lock()
	defer muNewExec.Unlock()
	q.qValuesExec = context.NewExec(backend(), q.ctx,
		func(ctx *context.Context, infoStates *graph.Node) *graph.Node {
			return forwardGraph(ctx, infoStates, numActions)
		})
	q.targetQValuesExec = context.NewExec(backend(), q.targetCtx,
		func(ctx *context.Context, infoStates *graph.Node) *graph.Node {
			return forwardGraph(ctx, infoStates, numActions)
		})
	q.trainStepExec = context.NewExec(backend(), q.ctx,
		func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
			infoStates, actionsMask, targets := inputs[0], inputs[1], inputs[2]
			g := infoStates.Graph()
			ctx.SetTraining(g, true)
			loss := lossGraph(ctx, infoStates, actionsMask, targets, numActions)
			q.optimizer.UpdateGraph(ctx, g, loss)
			train.ExecPerStepUpdateGraphFn(ctx, g)
			return loss
		})

	// Force creating/loading of variables without race conditions first.
	emptyState := [][]float32{make([]float32, infoStateSize)}
	_ = q.qValues(q.qValuesExec, emptyState)
	_ = q.qValues(q.targetQValuesExec, emptyState)
	klog.V(1).Infof("Created %s", q)
	return q, nil
}

// String implements fmt.Stringer and dqn.QNetwork.
func (q *QNetwork) String() string {
	if q == nil {
		return "<nil>[GoMLX]"
	}
	desc := fmt.Sprintf("fnn(%dx%d)",
		context.GetParamOr(q.ctx, "fnn_num_hidden_layers", 0), context.GetParamOr(q.ctx, "fnn_num_hidden_nodes", 0))
	if q.checkpoint == nil {
		return desc + "[GoMLX]"
	}
	return fmt.Sprintf("%s[GoMLX]@%s", desc, q.checkpoint.Dir())
}

// Context returns the online network context.
func (q *QNetwork) Context() *context.Context { return q.ctx }

// QValues implements dqn.QNetwork.
func (q *QNetwork) QValues(infoStates [][]float32) [][]float32 {
	q.muLearning.RLock()
	defer q.muLearning.RUnlock()
	return q.qValues(q.qValuesExec, infoStates)
}

// TargetQValues implements dqn.QNetwork.
func (q *QNetwork) TargetQValues(infoStates [][]float32) [][]float32 {
	q.muLearning.RLock()
	defer q.muLearning.RUnlock()
	return q.qValues(q.targetQValuesExec, infoStates)
}

func (q *QNetwork) qValues(exec *context.Exec, infoStates [][]float32) [][]float32 {
	input := graph.DonateTensorBuffer(createInfoStates(infoStates, q.infoStateSize), backend())
	qValuesT := exec.Call(input)[0]
	flat := tensors.CopyFlatData[float32](qValuesT)
	qValues := make([][]float32, len(infoStates))
	for ii := range qValues {
		qValues[ii] = flat[ii*q.numActions : (ii+1)*q.numActions]
	}
	return qValues
}

// Learn implements dqn.QNetwork.
func (q *QNetwork) Learn(infoStates [][]float32, actions []int, targets []float32) (loss float32) {
	inputs := []*tensors.Tensor{
		createInfoStates(infoStates, q.infoStateSize),
		createActionsMask(actions, q.numActions),
		createTargets(targets),
	}
	donatedInputs := generics.SliceMap(inputs, func(t *tensors.Tensor) any {
		return graph.DonateTensorBuffer(t, backend())
	})
	q.muLearning.Lock()
	defer q.muLearning.Unlock()
	lossT := q.trainStepExec.Call(donatedInputs...)[0]
	return tensors.ToScalar[float32](lossT)
}

// SyncTarget implements dqn.QNetwork: it copies the online network variables to the target network.
func (q *QNetwork) SyncTarget() {
	q.muLearning.Lock()
	defer q.muLearning.Unlock()
	prefix := context.RootScope + fnnScope
	var count int
	q.ctx.EnumerateVariables(func(v *context.Variable) {
		if !strings.HasPrefix(v.Scope(), prefix) {
			return
		}
		targetVar := q.targetCtx.InspectVariable(v.Scope(), v.Name())
		if targetVar == nil {
			klog.Errorf("target network missing variable %s/%s", v.Scope(), v.Name())
			return
		}
		value := tensors.FromFlatDataAndDimensions(tensors.CopyFlatData[float32](v.Value()), v.Shape().Dimensions...)
		targetVar.SetValue(value)
		count++
	})
	klog.V(2).Infof("%s: synced %d variables to the target network", q, count)
}

// Save implements ai.Saver.
func (q *QNetwork) Save() error {
	if q.checkpoint == nil {
		klog.Warningf("This dqn model is not associated to a checkpoint directory, not saving")
		return nil
	}
	q.muSave.Lock()
	defer q.muSave.Unlock()
	q.muLearning.RLock()
	defer q.muLearning.RUnlock()
	return q.checkpoint.Save()
}

// writeHyperparametersHelp enumerates all the hyperparameters set in the context.
func (q *QNetwork) writeHyperparametersHelp() {
	buf := &bytes.Buffer{}
	_, _ = fmt.Fprintf(buf, "DQN model parameters:\n")
	_, _ = fmt.Fprintf(buf, "\tmodel=<path_to_model> to use the model saved at the given directory, or\n")
	_, _ = fmt.Fprintf(buf, "\tmodel=-help to show this help message\n")
	_, _ = fmt.Fprintf(buf, "\tkeep=<n> number of checkpoints to keep, default is 10\n")
	_, _ = fmt.Fprintf(buf, "\thidden_layers=<n>, hidden_nodes=<n> shortcuts to the FNN hidden layers configuration\n")
	q.ctx.EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		_, _ = fmt.Fprintf(buf, "\t%q: default value is %v\n", key, value)
	})
	klog.Info(buf)
}
