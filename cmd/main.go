// Command cmd lists the audio output devices PortAudio can see, so the
// right value for output.device can be picked without trial and error.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/gordonklaus/portaudio"
)

func main() {
	verbose := flag.Bool("v", false, "also list devices without output channels")
	flag.Parse()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("Failed to initialize PortAudio: %v", err)
	}
	defer func() {
		if err := portaudio.Terminate(); err != nil {
			log.Printf("Error terminating PortAudio: %v", err)
		}
	}()

	devices, err := portaudio.Devices()
	if err != nil {
		log.Fatalf("Failed to enumerate devices: %v", err)
	}

	defaultOut, err := portaudio.DefaultOutputDevice()
	if err != nil {
		// No default output is normal on headless machines; keep listing.
		log.Printf("No default output device: %v", err)
		defaultOut = nil
	}

	fmt.Println("Output devices (use with output.device: \"portaudio:<name>\"):")
	listed := 0
	for _, dev := range devices {
		if dev.MaxOutputChannels < 1 && !*verbose {
			continue
		}
		marker := " "
		if defaultOut != nil && dev.Name == defaultOut.Name {
			marker = "*"
		}
		fmt.Printf("  %s %-40s  out=%d  rate=%.0f  latency=%s\n",
			marker, dev.Name, dev.MaxOutputChannels, dev.DefaultSampleRate,
			dev.DefaultLowOutputLatency)
		listed++
	}
	if listed == 0 {
		fmt.Println("  (none)")
	}

	fmt.Println()
	fmt.Println("The daemon matches names case-insensitively and by substring,")
	fmt.Println("so a unique fragment is enough:")
	if defaultOut != nil {
		frag := defaultOut.Name
		if i := strings.IndexAny(frag, " ("); i > 0 {
			frag = frag[:i]
		}
		fmt.Printf("  output.device: \"portaudio:%s\"\n", frag)
	} else {
		fmt.Println("  output.device: \"portaudio\"   # default device")
	}
	fmt.Println("Other backends: \"null\" (discard), \"wav:<path>\" (record to file).")
}
