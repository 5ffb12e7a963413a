package main

import (
	"flag"
	"log"
	"os"

	"github.com/red4tools/meshexport/config"
	"github.com/red4tools/meshexport/export"
	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/utils"
	"github.com/red4tools/meshexport/vfs"
	"github.com/red4tools/meshexport/web"
)

func openSources(names []string) []export.Source {
	sources := make([]export.Source, 0, len(names))
	for _, name := range names {
		f, err := os.Open(name)
		if err != nil {
			log.Fatal(err)
		}
		sources = append(sources, export.Source{Name: name, Stream: f})
	}
	return sources
}

func dump(p red4.Parser, names []string) {
	for _, src := range openSources(names) {
		res, err := p.Parse(src.Stream, src.Name)
		src.Stream.(*os.File).Close()
		if err != nil {
			log.Fatal(err)
		}
		if res == nil {
			log.Printf("%q is not a container", src.Name)
			continue
		}
		utils.Dump(res)
	}
}

func main() {
	var meshes, rigs utils.StringList
	var addr, dir, out, configPath, validation string
	var preview, text, nolod, dumpMeta, serve bool
	flag.Var(&meshes, "mesh", "Mesh container to export, repeat to combine")
	flag.Var(&rigs, "rig", "Rig container to bind, repeat to union")
	flag.StringVar(&out, "out", "", "Output file, defaults to the first mesh name with .glb/.gltf")
	flag.BoolVar(&preview, "preview", false, "Export positions of every lod only")
	flag.BoolVar(&text, "text", false, "Write .gltf with external .bin instead of .glb")
	flag.BoolVar(&nolod, "nolod", false, "Export every lod, not only the first")
	flag.StringVar(&validation, "validation", "", "Validation mode: strict, tryfix or skip")
	flag.StringVar(&configPath, "config", "", "Path to yaml config")
	flag.BoolVar(&dumpMeta, "dump", false, "Dump parsed metadata of the meshes and exit")
	flag.BoolVar(&serve, "serve", false, "Start http server over -dir")
	flag.StringVar(&dir, "dir", "", "Directory with containers for -serve")
	flag.StringVar(&addr, "i", ":8000", "Address of server")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatal(err)
		}
	}
	if text {
		cfg.Binary = false
	}
	if nolod {
		cfg.LodFilter = false
	}
	if validation != "" {
		mode, err := config.ParseValidationMode(validation)
		if err != nil {
			log.Fatal(err)
		}
		cfg.Validation = mode
	}
	config.Set(cfg)

	parser := &red4.SidecarParser{}
	e, err := export.NewFromConfig(parser, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if serve {
		if dir == "" {
			flag.PrintDefaults()
			return
		}
		if err := web.StartServer(addr, vfs.NewDirectoryDriver(dir), e); err != nil {
			log.Fatal(err)
		}
		return
	}

	if len(meshes) == 0 {
		flag.PrintDefaults()
		return
	}
	if dumpMeta {
		dump(parser, meshes)
		return
	}

	if out == "" {
		out = export.OutputName(meshes[0], cfg.Binary || preview)
	}
	o := export.OptionsFromConfig(cfg)

	var exported bool
	meshSources := openSources(meshes)
	rigSources := openSources(rigs)
	switch {
	case preview:
		exported, err = e.ExportPreview(meshSources[0], out)
	case len(rigSources) == 0 && len(meshSources) == 1:
		exported, err = e.ExportMesh(meshSources[0], out, o)
	case len(rigSources) == 0:
		exported, err = e.ExportMultiMeshWithoutRig(meshSources, out, o)
	case len(rigSources) == 1 && len(meshSources) == 1:
		exported, err = e.ExportMeshWithRig(meshSources[0], rigSources[0], out, o)
	default:
		exported, err = e.ExportMultiMeshWithRig(meshSources, rigSources, out, o)
	}
	if err != nil {
		log.Fatal(err)
	}
	if !exported {
		log.Printf("Nothing to export in %v", meshes)
		os.Exit(2)
	}
	log.Printf("Exported %s", out)
}
