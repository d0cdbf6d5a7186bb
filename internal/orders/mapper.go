package orders

import "github.com/ksred/order-api/internal/types"

// Pure mapping functions between storage records and transport records. All
// inputs are explicit parameters; there is no shared mapper state.

func orderToResponse(order *types.Order) *types.OrderResponse {
	resp := &types.OrderResponse{
		InternalID: order.InternalID,
		AccountID:  order.AccountID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
	}
	if order.Execution != nil {
		resp.Execution = executionToResponse(order.Execution, order.InternalID)
	}
	return resp
}

func executionToResponse(execution *types.Execution, orderInternalID string) *types.ExecutionResponse {
	return &types.ExecutionResponse{
		InternalID: execution.InternalID,
		OrderID:    orderInternalID,
		Price:      execution.Price,
		CreatedAt:  execution.CreatedAt,
	}
}
