package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"choreboard/domain"
)

const boardRowKey = "board"

// Storage provides access to underlying persistence mechanisms. Boards live
// one-per-entity in a table, keyed by entry id, with the entity ETag acting
// as the board version token.
type Storage struct {
	boardTable   *aztables.Client
	commandQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, boardsTable, commandQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	bt := svc.NewClient(boardsTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	cq, err := azqueue.NewQueueClientFromConnectionString(connStr, commandQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{boardTable: bt, commandQueue: cq}, nil
}

type boardEntity struct {
	aztables.Entity
	Data string `json:"Data"`
}

func decodeBoardEntity(data []byte) (domain.Board, error) {
	var ent boardEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Board{}, err
	}
	var b domain.Board
	if err := json.Unmarshal([]byte(ent.Data), &b); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// GetBoard retrieves the board for the provided entry. A board that was never
// saved comes back empty with no version token, so the first save creates it.
func (s *Storage) GetBoard(ctx context.Context, entryID string) (domain.Board, error) {
	resp, err := s.boardTable.GetEntity(ctx, entryID, boardRowKey, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Board{}, nil
		}
		return domain.Board{}, classify(err)
	}
	b, err := decodeBoardEntity(resp.Value)
	if err != nil {
		return domain.Board{}, err
	}
	b.UpdatedAt = string(resp.ETag)
	return b, nil
}

// SaveBoard writes the board, conditioned on expectedUpdatedAt when set. The
// returned board carries the new version token.
func (s *Storage) SaveBoard(ctx context.Context, entryID string, b domain.Board, expectedUpdatedAt string) (domain.Board, error) {
	// The token is transport state, not board state.
	b.UpdatedAt = ""
	data, err := json.Marshal(b)
	if err != nil {
		return domain.Board{}, err
	}
	ent := boardEntity{
		Entity: aztables.Entity{PartitionKey: entryID, RowKey: boardRowKey},
		Data:   string(data),
	}
	marshalled, err := json.Marshal(ent)
	if err != nil {
		return domain.Board{}, err
	}

	if expectedUpdatedAt == "" {
		resp, err := s.boardTable.UpsertEntity(ctx, marshalled, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
		if err != nil {
			return domain.Board{}, classify(err)
		}
		b.UpdatedAt = string(resp.ETag)
		return b, nil
	}

	etag := azcore.ETag(expectedUpdatedAt)
	resp, err := s.boardTable.UpdateEntity(ctx, marshalled, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil {
		return domain.Board{}, classify(err)
	}
	b.UpdatedAt = string(resp.ETag)
	return b, nil
}

// ForceSave queues the board for an unconditional write through the command
// queue. It is the fallback when the table cannot be reached directly.
func (s *Storage) ForceSave(ctx context.Context, entryID string, b domain.Board) error {
	b.UpdatedAt = ""
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	cmd := domain.Command{
		ID:             uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		EntityType:     "board",
		Type:           "save_board",
		Data:           data,
		Timestamp:      nextTimestamp(),
	}
	env := domain.CommandEnvelope{EntryID: entryID, Command: cmd}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if _, err := s.commandQueue.EnqueueMessage(ctx, string(payload), nil); err != nil {
		return err
	}
	return nil
}
