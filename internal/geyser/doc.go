// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package geyser hosts account update plugins.
//
// A plugin is selected by a JSON or YAML config file. The file either names a
// built-in plugin with `kind`, or a Go plugin shared object with `libpath`
// exporting a `NewGeyserPlugin func() geyser.Plugin` symbol. The remaining
// keys of the file belong to the plugin, which reads them in OnLoad using
// ReadConfig.
//
// Built-in plugins register themselves from their init functions. Import
// package allplugins to register all of them.
package geyser
