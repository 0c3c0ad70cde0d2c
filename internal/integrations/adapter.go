// Package integrations defines the port through which a run receives its
// inputs. Adapters live in subpackages.
package integrations

import (
    "context"
    "errors"

    "lpgroute/internal/model"
)

// ErrMalformedLine marks an input line that could not be parsed. Loaders log
// and skip such lines rather than failing the whole file.
var ErrMalformedLine = errors.New("malformed line")

// OrderSource defines the minimal interface for order and blockage feeds.
type OrderSource interface {
    Name() string
    FetchOrders(ctx context.Context) (OrderBatch, error)
    FetchBlockages(ctx context.Context) (BlockageBatch, error)
}

// OrderBatch holds orders sorted by arrival minute.
type OrderBatch struct {
    Orders  []model.Order
    Skipped int
}

type BlockageBatch struct {
    Blockages []model.Blockage
    Skipped   int
}
