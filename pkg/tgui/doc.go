// Package tgui holds small chat UI helpers: callback data in the
// "plugin:action:payload" form, inline keyboards and HTML formatting that is
// safe for ParseMode="HTML".
package tgui
