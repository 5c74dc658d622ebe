package iface

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/costexplorer"
)

// CostExplorerAPI is the slice of the Cost Explorer client the collector
// uses. *costexplorer.CostExplorer satisfies it.
//
//go:generate mockery --name CostExplorerAPI --output ../mocks
type CostExplorerAPI interface {
	GetCostAndUsageWithContext(ctx aws.Context, input *costexplorer.GetCostAndUsageInput, opts ...request.Option) (*costexplorer.GetCostAndUsageOutput, error)
}
