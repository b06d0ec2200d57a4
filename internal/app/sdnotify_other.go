//go:build !linux

package app

import "time"

func NotifyReady()    {}
func NotifyStopping() {}

func WatchdogInterval() time.Duration { return 0 }
func NotifyWatchdog()                 {}
