package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpd "github.com/chromedp/cdproto/dom"
)

// DOM exposes the CDP DOM domain actions pagecheck uses.
type DOM interface {
	GetAttributes(ctx context.Context, nodeID cdp.NodeID) (map[string]string, error)
	GetBoxModel(ctx context.Context, nodeID cdp.NodeID) (*cdpd.BoxModel, error)
	ScrollIntoViewIfNeeded(ctx context.Context, nodeID cdp.NodeID) error
}

var _ DOM = &dom{}

type dom struct {
	exec cdp.Executor
}

// NewDOM returns a new CDP DOM domain wrapper.
func NewDOM(exec cdp.Executor) DOM {
	return &dom{exec}
}

// GetAttributes returns the node's attributes. CDP reports them as a flat
// name, value, name, value... list.
func (d *dom) GetAttributes(ctx context.Context, nodeID cdp.NodeID) (map[string]string, error) {
	action := cdpd.GetAttributes(nodeID)
	flat, err := action.Do(cdp.WithExecutor(ctx, d.exec))
	if err != nil {
		return nil, fmt.Errorf("getting attributes of node %d: %w", nodeID, err)
	}

	attrs := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		attrs[flat[i]] = flat[i+1]
	}

	return attrs, nil
}

func (d *dom) GetBoxModel(ctx context.Context, nodeID cdp.NodeID) (*cdpd.BoxModel, error) {
	action := cdpd.GetBoxModel().WithNodeID(nodeID)
	box, err := action.Do(cdp.WithExecutor(ctx, d.exec))
	if err != nil {
		return nil, fmt.Errorf("getting box model of node %d: %w", nodeID, err)
	}

	return box, nil
}

func (d *dom) ScrollIntoViewIfNeeded(ctx context.Context, nodeID cdp.NodeID) error {
	action := cdpd.ScrollIntoViewIfNeeded().WithNodeID(nodeID)
	if err := action.Do(cdp.WithExecutor(ctx, d.exec)); err != nil {
		return fmt.Errorf("scrolling node %d into view: %w", nodeID, err)
	}

	return nil
}
