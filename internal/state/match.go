package state

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Save versions: bump when new fields are added to the match encoding.
const (
	MatchActionsAndReturns = iota + 1
)

// Encoder is any type of encoder -- implemented by gob.Encoder, json.Encoder
type Encoder interface {
	// Encode v or return an error.
	Encode(v any) error
}

// Decoder is any type of decoder -- implemented by gob.Decoder, json.Decoder
type Decoder interface {
	// Decode into v or return an error.
	Decode(v any) error
}

// EncodeMatch will "save" (encode) the match actions and final returns for future reconstruction.
func EncodeMatch(enc Encoder, actions []Action, returns []float32) error {
	saveFileVersion := MatchActionsAndReturns
	if err := enc.Encode(saveFileVersion); err != nil {
		return errors.Wrapf(err, "failed to encode match's version")
	}
	if err := enc.Encode(actions); err != nil {
		return errors.Wrapf(err, "failed to encode match's actions")
	}
	if err := enc.Encode(returns); err != nil {
		return errors.Wrapf(err, "failed to encode match's returns")
	}
	return nil
}

// DecodeMatch restores a match encoded with EncodeMatch, and replays it to rebuild the final board.
func DecodeMatch(dec Decoder) (final *Board, actions []Action, returns []float32, err error) {
	var saveFileVersion int
	if err = dec.Decode(&saveFileVersion); err != nil {
		err = errors.Wrapf(err, "failed to decode match's version")
		return
	}
	if saveFileVersion != MatchActionsAndReturns {
		err = errors.Errorf("unknown match save version %d", saveFileVersion)
		return
	}
	if err = dec.Decode(&actions); err != nil {
		err = errors.Wrapf(err, "failed to decode match's actions")
		return
	}
	if err = dec.Decode(&returns); err != nil {
		err = errors.Wrapf(err, "failed to decode match's returns")
		return
	}
	final = NewBoard()
	for ii, action := range actions {
		if err = final.ApplyAction(action); err != nil {
			err = errors.WithMessagef(err, "replaying move #%d of match", ii)
			return
		}
	}
	klog.V(2).Infof("Loaded match with %d actions, returns=%v", len(actions), returns)
	return
}
