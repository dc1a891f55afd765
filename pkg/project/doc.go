// Package project scaffolds and loads snowkeeper projects.
//
// A project is a repository checkout holding change scripts:
//
//	project-root/
//	├── snowkeeper.yaml             # Environment mappings and deployment policy
//	├── order_file.txt              # Versioned script folders in apply order
//	├── coEDW/                      # Database level scripts
//	└── account/                    # Account level scripts
//	    └── post_deployment/        # Applied on every account level run
//
// Initialize is idempotent: missing files and directories are created and
// existing content is left alone.
//
//	proj := project.New(afero.NewOsFs(), ".")
//	created, err := proj.Initialize(project.InitOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, path := range created {
//		fmt.Println("created", path)
//	}
package project
