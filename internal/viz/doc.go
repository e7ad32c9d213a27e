// Package viz draws running simulations in the terminal with Bubble Tea.
//
//   - [Model]: live view of one [Simulation], particles on a braille
//     [Canvas] next to an energy graph and property readout
//   - [RunInteractive]: preset picker that opens a [Model]
//   - [Camera]: rotating projection of the box; higher dimensions are
//     drawn through their first three axes
//
// # Key Bindings
//
//	Space - Pause/Resume
//	S     - Single step while paused
//	[ ]   - Halve/double steps per frame
//	X Y   - Rotate the camera
//	+ -   - Zoom
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
