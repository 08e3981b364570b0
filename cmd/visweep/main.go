// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package main

import "github.com/gotmc/visweep/cmd/visweep/cmd"

func main() {
	cmd.Execute()
}
