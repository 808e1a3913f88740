package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"straton/internal/logger"
	"straton/internal/market"
)

// WatchCalendar 监听节假日覆盖文件的变更并热重载到日历。
// 监听目录而不是文件本身，编辑器原子替换（rename+create）也能捕获。
func WatchCalendar(ctx context.Context, calendar *market.Calendar, path string) error {
	if path == "" {
		return fmt.Errorf("calendar watch: 文件路径不能为空")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != abs {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
					continue
				}
				if err := calendar.LoadFile(abs); err != nil {
					logger.Errorf("calendar reload failed (%s): %v", abs, err)
					continue
				}
				logger.Infof("calendar reloaded from %s", abs)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("calendar watcher error: %v", err)
			}
		}
	}()
	return nil
}
