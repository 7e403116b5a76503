package portfolio

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pulsetrader/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Snapshot 对外暴露的只读配置快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Config   Config
}

// ChangeListener 在配置重载成功后被调用。
type ChangeListener func(Snapshot)

// Loader 负责加载组合配置并监听文件热更新。
// 配置写坏时保留旧快照，只记录错误。
type Loader struct {
	path    string
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener

	closeOnce sync.Once
	done      chan struct{}
}

// NewLoader 读取配置文件并开始监听 FS 事件。
func NewLoader(path string) (*Loader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("portfolio loader requires path")
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher failed: %w", err)
	}
	// 监听目录而不是文件本身，编辑器的原子替换会换 inode。
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s failed: %w", path, err)
	}
	l := &Loader{
		path:    path,
		watcher: watcher,
		snapshot: Snapshot{
			Version:  1,
			LoadedAt: time.Now(),
			Config:   cfg,
		},
		done: make(chan struct{}),
	}
	go l.watchLoop()
	return l, nil
}

// Snapshot 返回当前配置快照。
func (l *Loader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (l *Loader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := l.snapshot
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("portfolio listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

// Close 停止监听。
func (l *Loader) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.watcher.Close()
	})
	return err
}

func (l *Loader) watchLoop() {
	var timer *time.Timer
	trigger := make(chan struct{}, 1)
	for {
		select {
		case <-l.done:
			return
		case evt, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(l.path) {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			// 去抖：编辑器保存通常触发一串事件
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("portfolio watcher error: %v", err)
		case <-trigger:
			l.reload()
		}
	}
}

func (l *Loader) reload() {
	cfg, err := LoadConfig(l.path)
	if err != nil {
		logger.Errorf("portfolio config reload failed (%s): %v", filepath.Base(l.path), err)
		return
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Config:   cfg,
	}
	snap := l.snapshot
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.Unlock()
	logger.Infof("portfolio config reloaded: %d strategies (v%d)", len(cfg.Strategies), snap.Version)
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("portfolio listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}
