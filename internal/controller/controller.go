package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/codec"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/service/room"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/transport/ws"
)

type iRoomService interface {
	EnsureRoom(context.Context, *room.EnsureRoomParams) (room.EnsureRoomResponse, error)
	GetRoom(context.Context, string) (room.Room, error)
	GetPatientRoom(context.Context, string) (room.Room, error)
	IsRoomExists(context.Context, string) (bool, error)
	ValidateRoomID(string) error
}

type iBroadcaster interface {
	Join(ctx context.Context, roomID string, m registry.Member) error
	Leave(ctx context.Context, roomID string, m registry.Member) error
	Publish(ctx context.Context, roomID string, e codec.Event, exclude registry.Member) error
	Stats() (rooms, members int)
}

type Config struct {
	// ExcludeSender stops events from being echoed back to their sender.
	ExcludeSender bool
	// StrictRooms rejects websocket connections to rooms that were never provisioned.
	StrictRooms bool
	SendBuffer  int
	WS          ws.Config
}

type controller struct {
	roomService iRoomService
	broadcaster iBroadcaster
	upgrader    websocket.Upgrader
	logger      *slog.Logger
	cfg         Config
}

func NewController(roomService iRoomService, broadcaster iBroadcaster, logger *slog.Logger, cfg Config) *controller {
	if cfg.WS == (ws.Config{}) {
		cfg.WS = ws.DefaultConfig()
	}

	return &controller{
		roomService: roomService,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
		cfg:    cfg,
	}
}
