package ssm

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// API is the subset of the SSM client used by [Client]. It is satisfied by
// *ssm.Client and can be replaced with [WithAPI].
type API interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

var _ API = (*ssm.Client)(nil)
