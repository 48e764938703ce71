package apiclient

// Storage holds the bearer token. Get returns storage.ErrNotFound when the key is empty.
type Storage interface {
	Get(key string) (string, error)
	Remove(key string) error
}

// Notifier surfaces messages to the user. Calls are fire-and-forget.
type Notifier interface {
	// Toast shows a transient, non-blocking message.
	Toast(message string)
	// ShowLoading shows a blocking loading overlay.
	ShowLoading(title string)
	HideLoading()
}

// Navigator moves the user between screens.
type Navigator interface {
	// ReLaunch replaces the whole navigation stack with route.
	ReLaunch(route string) error
}

// NavigatorFunc adapts a function to a Navigator.
type NavigatorFunc func(route string) error

func (f NavigatorFunc) ReLaunch(route string) error { return f(route) }

type nopNotifier struct{}

func (nopNotifier) Toast(string)       {}
func (nopNotifier) ShowLoading(string) {}
func (nopNotifier) HideLoading()       {}

type nopNavigator struct{}

func (nopNavigator) ReLaunch(string) error { return nil }
