package main

import (
	"fmt"
	"strconv"

	"github.com/CodedInternet/gorecoater/onboard"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	"github.com/abiosoft/ishell"
)

// parseMotion reads "<name> <mode> [distance] <speed>" from shell arguments.
func parseMotion(args []string) (name string, cmd motion.Command, err error) {
	if len(args) < 3 {
		return "", cmd, fmt.Errorf("expected <name> <mode> [distance] <speed>")
	}
	name = args[0]
	mode, err := motion.ParseMode(args[1])
	if err != nil {
		return
	}

	numbers := make([]float64, 0, 2)
	for _, arg := range args[2:] {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return "", cmd, fmt.Errorf("%q is not a number", arg)
		}
		numbers = append(numbers, f)
	}

	switch mode {
	case motion.ModeAbsolute, motion.ModeRelative:
		if len(numbers) != 2 {
			return "", cmd, fmt.Errorf("%s needs a distance and a speed", mode)
		}
		cmd = motion.Command{Mode: mode, Distance: numbers[0], Speed: numbers[1]}
	case motion.ModeHoming, motion.ModeSpeed:
		cmd = motion.Command{Mode: mode, Speed: numbers[len(numbers)-1]}
	default:
		return "", cmd, fmt.Errorf("mode %s is not available from the shell", mode)
	}
	return
}

func newShell(recoater *onboard.Recoater) *ishell.Shell {
	axisNames := func([]string) []string {
		return recoater.AxisNames()
	}

	shell := ishell.New()
	shell.Println("Recoater development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "axes",
		Help: "list axes with their position",
		Func: func(c *ishell.Context) {
			for _, name := range recoater.AxisNames() {
				info, err := recoater.Info(name)
				if err != nil {
					c.Printf("%-16s %v\n", name, err)
					continue
				}
				c.Printf("%-16s busy:%-5t position:%.3f\n", name, info.Busy, info.Position)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "info",
		Completer: axisNames,
		Help:      "info <axis>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: info <axis>")
				return
			}
			info, err := recoater.Info(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			cmd, _ := recoater.Command(c.Args[0])
			c.Printf("busy:%t position:%.3f command:%v\n", info.Busy, info.Position, cmd)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "move",
		Completer: axisNames,
		Help:      "move <axis> <absolute|relative> <distance> <speed>",
		Func: func(c *ishell.Context) {
			name, cmd, err := parseMotion(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("Moving %s: %s\n", name, cmd)
			if err = recoater.StartMotion(name, cmd); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "home",
		Completer: axisNames,
		Help:      "home <axis> <speed>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Println("usage: home <axis> <speed>")
				return
			}
			name, cmd, err := parseMotion([]string{c.Args[0], "homing", c.Args[1]})
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("Homing %s\n", name)
			if err = recoater.StartMotion(name, cmd); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "speed",
		Completer: axisNames,
		Help:      "speed <axis> <speed>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Println("usage: speed <axis> <speed>")
				return
			}
			name, cmd, err := parseMotion([]string{c.Args[0], "speed", c.Args[1]})
			if err != nil {
				c.Err(err)
				return
			}
			if err = recoater.StartMotion(name, cmd); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "stop",
		Completer: axisNames,
		Help:      "stop <axis>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: stop <axis>")
				return
			}
			if err := recoater.StopMotion(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "state",
		Completer: axisNames,
		Help:      "state <axis>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: state <axis>")
				return
			}
			state, err := recoater.State(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(state)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "screwpos",
		Completer: axisNames,
		Help:      "screwpos <axis>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: screwpos <axis>")
				return
			}
			tracked, board, err := recoater.ScrewPositions(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("tracked:%.3f board:%.3f drift:%.3f\n", tracked, board, board-tracked)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "blade",
		Help: "blade <name> <absolute|relative> <distance> <speed>",
		Func: func(c *ishell.Context) {
			name, cmd, err := parseMotion(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			blade, err := recoater.Blade(name)
			if err != nil {
				c.Err(err)
				return
			}
			if err = blade.StartMotion(cmd); err != nil {
				c.Err(err)
			}
		},
	})

	return shell
}
