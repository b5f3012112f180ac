package presence

import (
	"context"
	"fmt"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// GroupByRoom builds one group per distinct room of the given users.
// A user in N rooms lands in N groups. Groups keep the order in which rooms
// are first seen and users keep their input order.
func GroupByRoom(users []domain.User) []domain.RoomGroup {
	index := make(map[string]int)
	var groups []domain.RoomGroup

	for i := range users {
		view := users[i].View()
		for _, room := range users[i].Rooms {
			pos, ok := index[room]
			if !ok {
				pos = len(groups)
				index[room] = pos
				groups = append(groups, domain.RoomGroup{Room: room})
			}
			groups[pos].Users = append(groups[pos].Users, view)
		}
	}
	return groups
}

// dispatchRoomGroups runs action once per group. A failing or panicking group
// is logged and counted; the remaining groups are still attempted.
func dispatchRoomGroups(ctx context.Context, log *zap.Logger, groups []domain.RoomGroup, action func(context.Context, domain.RoomGroup) error) (failures int) {
	for _, group := range groups {
		if err := runGroup(ctx, group, action); err != nil {
			failures++
			log.Error("room broadcast failed",
				zap.String("room", group.Room),
				zap.Int("users", len(group.Users)),
				zap.Error(err))
		}
	}
	return failures
}

func runGroup(ctx context.Context, group domain.RoomGroup, action func(context.Context, domain.RoomGroup) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(fmt.Errorf("panic: %v", r))
		}
	}()
	return action(ctx, group)
}
