package ir

import "errors"

// ErrMissingTile is returned when an operand is required to be tiled
// (spec invariant: every operand ends tiled at every node on its
// data_path after tiling) but a node on its data_path has no tiling
// entry.
var ErrMissingTile = errors.New("ir: operand has an untiled node on its data path")
