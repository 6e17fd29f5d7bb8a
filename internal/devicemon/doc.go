// Package devicemon watches udev for sound card hotplug events so the daemon
// can reopen track sources whose devices came back.
package devicemon
