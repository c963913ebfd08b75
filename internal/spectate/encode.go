package spectate

import (
	"fmt"
	"time"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hexlog/catan-server-go/internal/game"
	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/rules"
	"github.com/hexlog/catan-server-go/internal/repository"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var marshalOptions = protojson.MarshalOptions{UseProtoNames: true}

// envelope wraps a payload with its routing fields and encodes it as JSON.
func envelope(msgType, gameID, requestID string, payload map[string]any) ([]byte, error) {
	fields := map[string]any{
		"type":    msgType,
		"game_id": gameID,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if payload != nil {
		fields["payload"] = payload
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s message: %w", msgType, err)
	}
	data, err := marshalOptions.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msgType, err)
	}
	return data, nil
}

func counts(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func eventFields(event rules.Event) map[string]any {
	params := make(map[string]any, len(event.Params))
	for k, v := range event.Params {
		params[k] = v
	}
	return map[string]any{
		"seq":       event.Seq,
		"event":     string(event.Type),
		"action":    string(event.Action),
		"seat":      event.Actor,
		"player":    event.Player,
		"summary":   event.Summary,
		"params":    params,
		"timestamp": event.Timestamp.UTC().Format(timestampLayout),
	}
}

func stateFields(s *game.Session) map[string]any {
	dice := s.Dice()
	allowed := make([]any, 0)
	for _, kind := range s.AllowedActions() {
		allowed = append(allowed, string(kind))
	}
	discards := make([]any, 0)
	for _, n := range s.PendingDiscards() {
		discards = append(discards, n)
	}

	players := make([]any, 0, len(s.Players()))
	for seat, name := range s.Players() {
		account, err := s.Account(seat)
		if err != nil {
			continue
		}
		players = append(players, map[string]any{
			"seat":           seat,
			"name":           name,
			"hand":           counts(account.Hand.Map()),
			"hand_size":      account.Hand.Total(),
			"dev_cards":      account.Cards.Total() + account.Fresh.Total(),
			"knights":        account.Knights(),
			"settlements":    account.Settlements,
			"cities":         account.Cities,
			"roads":          account.Roads,
			"victory_points": account.VictoryPoints,
		})
	}

	fields := map[string]any{
		"game_id":          s.ID(),
		"history_depth":    s.HistoryDepth(),
		"restored_depth":   s.RestoredDepth(),
		"phase":            s.Phase().String(),
		"current":          s.Current(),
		"turn":             s.Turn(),
		"dice":             []any{dice[0], dice[1]},
		"robber":           int(s.Robber()),
		"longest_road":     s.LongestRoad(),
		"largest_army":     s.LargestArmy(),
		"winner":           s.Winner(),
		"aborted":          s.Aborted(),
		"can_undo":         s.CanUndo(),
		"can_redo":         s.CanRedo(),
		"free_roads":       s.FreeRoads(),
		"allowed_actions":  allowed,
		"pending_discards": discards,
		"bank":             counts(s.Bank().Map()),
		"dev_pile":         s.PileRemaining(),
		"players":          players,
		"board":            boardFields(s.Board()),
	}
	if offer, ok := s.PendingTrade(); ok {
		fields["pending_trade"] = map[string]any{
			"id":    offer.ID.String(),
			"from":  offer.From,
			"to":    offer.To,
			"give":  counts(offer.Give.Map()),
			"want":  counts(offer.Want.Map()),
			"round": offer.Round,
		}
	}
	return fields
}

func boardFields(b board.Reader) map[string]any {
	tiles := make([]any, 0, board.NumTiles)
	for _, tile := range b.Tiles() {
		tiles = append(tiles, map[string]any{
			"id":      int(tile.ID),
			"terrain": tile.Terrain.String(),
			"token":   tile.Token,
		})
	}
	buildings := make([]any, 0)
	for v := 0; v < b.NumVertices(); v++ {
		building := b.Building(board.VertexID(v))
		if building.Empty() {
			continue
		}
		buildings = append(buildings, map[string]any{
			"vertex": v,
			"owner":  building.Owner,
			"kind":   building.Kind.String(),
		})
	}
	roads := make([]any, 0)
	for e := 0; e < b.NumEdges(); e++ {
		if owner := b.Road(board.EdgeID(e)); owner != board.Nobody {
			roads = append(roads, map[string]any{"edge": e, "owner": owner})
		}
	}
	ports := make([]any, 0)
	for _, port := range b.Ports() {
		ports = append(ports, map[string]any{
			"edge":     int(port.Edge),
			"resource": port.Resource.String(),
			"ratio":    port.Ratio,
		})
	}
	return map[string]any{
		"tiles":     tiles,
		"buildings": buildings,
		"roads":     roads,
		"ports":     ports,
	}
}

func recordFields(rec *game.Record) map[string]any {
	return map[string]any{
		"seq":     rec.Seq,
		"action":  string(rec.Kind),
		"seat":    rec.Actor,
		"summary": rec.Summary,
	}
}

func summaryFields(summaries []repository.Summary) []any {
	out := make([]any, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, map[string]any{
			"game_id":    s.GameID,
			"seq":        s.Seq,
			"phase":      s.Phase,
			"winner":     s.Winner,
			"checksum":   s.Checksum,
			"updated_at": s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func errorFields(err error) map[string]any {
	st, _ := status.FromError(err)
	fields := map[string]any{
		"grpc_code":   st.Code().String(),
		"message":     err.Error(),
		"recoverable": gameerr.Recoverable(err),
	}
	if code := gameerr.CodeOf(err); code != "" {
		fields["code"] = string(code)
	}
	return fields
}
