package nimbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nimbus-io/nimbus-client/internal/constants"
)

// Static errors for batch execution.
var (
	ErrUnsupportedResourceType  = errors.New("unsupported resource type")
	ErrUnsupportedOperationType = errors.New("unsupported operation type")
	ErrInvalidDataTypeZone      = errors.New("invalid data type for zone operation")
	ErrInvalidDataTypeRecord    = errors.New("invalid data type for record operation")
	ErrTransactionFailed        = errors.New("transaction failed")
)

// ZoneUpdateData carries the zone ID alongside its update payload.
type ZoneUpdateData struct {
	ZoneID  string
	Request *ZoneUpdateRequest
}

// RecordRef identifies one record within a zone for get and delete operations.
type RecordRef struct {
	ZoneID   string
	RecordID string
}

// RecordCreateData carries the target zone alongside a record payload.
type RecordCreateData struct {
	ZoneID  string
	Request *RecordCreateRequest
}

// BatchOperation represents one operation in a batch.
type BatchOperation struct {
	ID       string
	Type     string // "create", "update", "delete", "get"
	Resource string // "zone", "record"
	Data     interface{}
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Data     interface{}
	Error    error
	Duration time.Duration
}

// BatchExecutor executes batch operations concurrently. All operations go
// through the owning client, so the client's resilience pipeline still
// bounds and retries each one individually.
type BatchExecutor struct {
	client      Client
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a batch executor running at most concurrency
// operations at once.
func NewBatchExecutor(client Client, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = 5
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultAttemptTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations. Results are positionally aligned with
// operations; individual failures are reported in the result, not as an
// error from Execute.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(b.concurrency)

	for index, operation := range operations {
		index, operation := index, operation
		group.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}

			return nil
		})
	}

	_ = group.Wait()

	return results, nil
}

// executeOperation dispatches one operation by resource type.
func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	switch operation.Resource {
	case "zone":
		return b.executeZoneOperation(ctx, operation)
	case "record":
		return b.executeRecordOperation(ctx, operation)
	default:
		return &BatchResult{
			ID:    operation.ID,
			Error: fmt.Errorf("%w: %s", ErrUnsupportedResourceType, operation.Resource),
		}
	}
}

// handleCrudOperation runs the function matching the operation type.
func handleCrudOperation(
	operation BatchOperation,
	createFunc func() (interface{}, error),
	updateFunc func() (interface{}, error),
	deleteFunc func() (interface{}, error),
	getFunc func() (interface{}, error),
) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	var (
		data interface{}
		err  error
	)

	switch operation.Type {
	case "create":
		data, err = createFunc()
	case "update":
		data, err = updateFunc()
	case "delete":
		data, err = deleteFunc()
	case "get":
		data, err = getFunc()
	default:
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedOperationType, operation.Type)

		return result
	}

	result.Success = err == nil
	result.Data = data
	result.Error = err

	return result
}

func (b *BatchExecutor) executeZoneOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	return handleCrudOperation(operation,
		func() (interface{}, error) {
			if req, ok := operation.Data.(*ZoneCreateRequest); ok {
				return b.client.Zones().Create(ctx, req)
			}

			return nil, fmt.Errorf("%w create", ErrInvalidDataTypeZone)
		},
		func() (interface{}, error) {
			if data, ok := operation.Data.(*ZoneUpdateData); ok {
				return b.client.Zones().Update(ctx, data.ZoneID, data.Request)
			}

			return nil, fmt.Errorf("%w update", ErrInvalidDataTypeZone)
		},
		func() (interface{}, error) {
			if id, ok := operation.Data.(string); ok {
				return nil, b.client.Zones().Delete(ctx, id)
			}

			return nil, fmt.Errorf("%w delete", ErrInvalidDataTypeZone)
		},
		func() (interface{}, error) {
			if id, ok := operation.Data.(string); ok {
				return b.client.Zones().Get(ctx, id)
			}

			return nil, fmt.Errorf("%w get", ErrInvalidDataTypeZone)
		},
	)
}

func (b *BatchExecutor) executeRecordOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	return handleCrudOperation(operation,
		func() (interface{}, error) {
			if data, ok := operation.Data.(*RecordCreateData); ok {
				return b.client.Records().Create(ctx, data.ZoneID, data.Request)
			}

			return nil, fmt.Errorf("%w create", ErrInvalidDataTypeRecord)
		},
		func() (interface{}, error) {
			return nil, fmt.Errorf("%w: update", ErrUnsupportedOperationType)
		},
		func() (interface{}, error) {
			if ref, ok := operation.Data.(*RecordRef); ok {
				return nil, b.client.Records().Delete(ctx, ref.ZoneID, ref.RecordID)
			}

			return nil, fmt.Errorf("%w delete", ErrInvalidDataTypeRecord)
		},
		func() (interface{}, error) {
			if ref, ok := operation.Data.(*RecordRef); ok {
				return b.client.Records().Get(ctx, ref.ZoneID, ref.RecordID)
			}

			return nil, fmt.Errorf("%w get", ErrInvalidDataTypeRecord)
		},
	)
}

// BatchBuilder helps build batch operations.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{
		operations: make([]BatchOperation, 0),
	}
}

// AddCreateZone adds a zone creation operation.
func (b *BatchBuilder) AddCreateZone(id string, request *ZoneCreateRequest) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "create",
		Resource: "zone",
		Data:     request,
	})

	return b
}

// AddUpdateZone adds a zone update operation.
func (b *BatchBuilder) AddUpdateZone(id, zoneID string, request *ZoneUpdateRequest) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "update",
		Resource: "zone",
		Data: &ZoneUpdateData{
			ZoneID:  zoneID,
			Request: request,
		},
	})

	return b
}

// AddDeleteZone adds a zone deletion operation.
func (b *BatchBuilder) AddDeleteZone(id, zoneID string) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "delete",
		Resource: "zone",
		Data:     zoneID,
	})

	return b
}

// AddGetZone adds a zone get operation.
func (b *BatchBuilder) AddGetZone(id, zoneID string) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "get",
		Resource: "zone",
		Data:     zoneID,
	})

	return b
}

// AddCreateRecord adds a record creation operation.
func (b *BatchBuilder) AddCreateRecord(id, zoneID string, request *RecordCreateRequest) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "create",
		Resource: "record",
		Data: &RecordCreateData{
			ZoneID:  zoneID,
			Request: request,
		},
	})

	return b
}

// AddDeleteRecord adds a record deletion operation.
func (b *BatchBuilder) AddDeleteRecord(id, zoneID, recordID string) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "delete",
		Resource: "record",
		Data: &RecordRef{
			ZoneID:   zoneID,
			RecordID: recordID,
		},
	})

	return b
}

// AddGetRecord adds a record get operation.
func (b *BatchBuilder) AddGetRecord(id, zoneID, recordID string) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "get",
		Resource: "record",
		Data: &RecordRef{
			ZoneID:   zoneID,
			RecordID: recordID,
		},
	})

	return b
}

// Build returns the accumulated operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}

// BatchTransaction represents a batch with rollback on failure: when any
// operation fails, resources created by the batch are deleted again. Deletes
// and updates are not undone.
type BatchTransaction struct {
	operations []BatchOperation
	results    []BatchResult
	executor   *BatchExecutor
	rollback   bool
}

// NewBatchTransaction creates a new batch transaction.
func NewBatchTransaction(executor *BatchExecutor) *BatchTransaction {
	return &BatchTransaction{
		executor:   executor,
		operations: make([]BatchOperation, 0),
		rollback:   true,
	}
}

// Add adds an operation to the transaction.
func (t *BatchTransaction) Add(operation BatchOperation) *BatchTransaction {
	t.operations = append(t.operations, operation)

	return t
}

// SetRollback sets whether to rollback on failure.
func (t *BatchTransaction) SetRollback(rollback bool) *BatchTransaction {
	t.rollback = rollback

	return t
}

// Execute executes the transaction.
func (t *BatchTransaction) Execute(ctx context.Context) ([]BatchResult, error) {
	results, err := t.executor.Execute(ctx, t.operations)
	t.results = results

	var failedOps []string

	for _, result := range results {
		if !result.Success {
			failedOps = append(failedOps, result.ID)
		}
	}

	if len(failedOps) > 0 && t.rollback {
		t.performRollback(ctx)

		return results, fmt.Errorf("%w, %d operations failed: %v", ErrTransactionFailed, len(failedOps), failedOps)
	}

	return results, err
}

// performRollback deletes resources created by successful operations.
func (t *BatchTransaction) performRollback(ctx context.Context) {
	var rollbackOps []BatchOperation

	for i, result := range t.results {
		original := t.operations[i]
		if !result.Success || original.Type != "create" {
			continue
		}

		switch created := result.Data.(type) {
		case *Zone:
			rollbackOps = append(rollbackOps, BatchOperation{
				ID:       "rollback_" + original.ID,
				Type:     "delete",
				Resource: "zone",
				Data:     created.ID,
			})
		case *Record:
			rollbackOps = append(rollbackOps, BatchOperation{
				ID:       "rollback_" + original.ID,
				Type:     "delete",
				Resource: "record",
				Data: &RecordRef{
					ZoneID:   created.ZoneID,
					RecordID: created.ID,
				},
			})
		}
	}

	if len(rollbackOps) > 0 {
		_, _ = t.executor.Execute(ctx, rollbackOps)
	}
}
