package textfile

import (
    "context"

    log "github.com/sirupsen/logrus"

    "lpgroute/internal/integrations"
)

// Adapter serves orders and blockages from local text files. An empty path
// yields an empty batch.
type Adapter struct {
    OrdersPath    string
    BlockagesPath string
}

var _ integrations.OrderSource = Adapter{}

func (a Adapter) Name() string { return "textfile" }

func (a Adapter) FetchOrders(ctx context.Context) (integrations.OrderBatch, error) {
    if a.OrdersPath == "" {
        return integrations.OrderBatch{}, nil
    }
    if err := ctx.Err(); err != nil {
        return integrations.OrderBatch{}, err
    }
    b, err := LoadOrders(a.OrdersPath)
    if err == nil {
        log.WithFields(log.Fields{"file": a.OrdersPath, "orders": len(b.Orders), "skipped": b.Skipped}).Info("orders loaded")
    }
    return b, err
}

func (a Adapter) FetchBlockages(ctx context.Context) (integrations.BlockageBatch, error) {
    if a.BlockagesPath == "" {
        return integrations.BlockageBatch{}, nil
    }
    if err := ctx.Err(); err != nil {
        return integrations.BlockageBatch{}, err
    }
    b, err := LoadBlockages(a.BlockagesPath)
    if err == nil {
        log.WithFields(log.Fields{"file": a.BlockagesPath, "blockages": len(b.Blockages), "skipped": b.Skipped}).Info("blockages loaded")
    }
    return b, err
}
