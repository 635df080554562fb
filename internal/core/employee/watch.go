package employee

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EventType はストアの変更種別です。
type EventType int

const (
	// EventNone none event
	EventNone EventType = iota
	// EventLoaded 一覧の取得完了
	EventLoaded
	// EventLoadFailed 一覧の取得失敗
	EventLoadFailed
	// EventCreated 社員の追加
	EventCreated
	// EventUpdated 社員の楽観的更新
	EventUpdated
	// EventRemoved 社員の楽観的削除
	EventRemoved
	// EventRolledBack 失敗した変更の巻き戻し
	EventRolledBack
	// EventViewChanged 検索・ソート・ページ条件の変更
	EventViewChanged
	// EventSelectionChanged 選択状態の変更
	EventSelectionChanged
	// EventReset ストアの初期化
	EventReset
)

func (e EventType) String() string {
	names := [...]string{"None", "Loaded", "LoadFailed", "Created", "Updated", "Removed", "RolledBack", "ViewChanged", "SelectionChanged", "Reset"}
	if int(e) < 0 || int(e) >= len(names) {
		return fmt.Sprintf("EventType(%d)", int(e))
	}
	return names[e]
}

// Event はウォッチャーへ通知される変更イベントです。
type Event struct {
	Type EventType
	IDs  []int
}

type watchers struct {
	mu    sync.RWMutex
	chans map[uuid.UUID]chan<- Event
}

func newWatchers() *watchers {
	return &watchers{chans: make(map[uuid.UUID]chan<- Event)}
}

func (w *watchers) add(id uuid.UUID, ch chan<- Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chans[id] = ch
}

func (w *watchers) remove(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.chans[id]; !ok {
		return false
	}
	delete(w.chans, id)
	return true
}

// send は受信側の準備ができていないウォッチャーを待たずにイベントを配送します。
func (w *watchers) send(ev Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, ch := range w.chans {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Watch は ctx が終了するまでストアの変更イベントを ch に送信します。ctx 終了時に ch は close されます。
// 受信が追いつかない場合のイベントは破棄されるため、受信側は通知を契機に View を再取得してください。
func (s *Store) Watch(ctx context.Context, ch chan<- Event) error {
	if ch == nil {
		return fmt.Errorf("employee: watch channel is required")
	}
	id := uuid.New()
	s.watchers.add(id, ch)

	go func() {
		<-ctx.Done()
		if s.watchers.remove(id) {
			close(ch)
		}
	}()
	return nil
}
