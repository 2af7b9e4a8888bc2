// Package console adapts terminal input and output to core.Source so a
// grammar can be driven from stdin, which is handy for local development and
// for scripting a bot's commands.
package console
