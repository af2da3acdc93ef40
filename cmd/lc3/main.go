package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/i0nbeam/LC-3/cpu"
	"github.com/i0nbeam/LC-3/device"
	"github.com/i0nbeam/LC-3/emulator"
)

func main() {
	var compile string
	var output string
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&output, "o", "", "write assembled image to file, do not execute")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if len(compile) == 0 && flag.NArg() == 0 {
		log.Printf("usage: %v [-v] [-c file.asm [-o file.obj]] [image ...]", os.Args[0])
		os.Exit(2)
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Cpu.Verbose = verbose

	// Assemble a new program.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &cpu.Assembler{Verbose: verbose}
		for equ, value := range emu.Defines() {
			asm.Predefine(equ, value)
		}

		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if len(output) != 0 {
			err = os.WriteFile(output, prog.Image(), 0o644)
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
			return
		}

		emu.LoadProgram(prog)
	}

	for _, path := range flag.Args() {
		_, err := emu.LoadImage(path)
		if err != nil {
			log.Fatalf("%v: %v", path, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	console, err := device.NewConsole()
	if err != nil {
		log.Fatalf("terminal: %v", err)
	}
	defer console.Restore()

	emu.SetKeyboard(console)

	err = emu.Run(ctx)
	if err != nil {
		console.Restore()
		log.Fatal(err)
	}
}
